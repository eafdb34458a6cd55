package cmd

import (
	"fmt"
	"go/types"
	"time"

	"github.com/spf13/cobra"
	"github.com/stellar/go-stellar-sdk/support/config"
	"github.com/stellar/go-stellar-sdk/support/log"

	cmdUtils "github.com/schoolhub/schoolhub-backend/cmd/utils"
	"github.com/schoolhub/schoolhub-backend/internal/auth"
)

type AuthCommand struct{}

type generateTokenOptions struct {
	EC256PublicKey  string
	EC256PrivateKey string
	PrincipalID     string
	ExpiresIn       time.Duration
	Superadmin      bool
}

func (a *AuthCommand) Command() *cobra.Command {
	authCmd := &cobra.Command{
		Use:              "auth",
		Short:            "Authentication related commands",
		PersistentPreRun: cmdUtils.PropagatePersistentPreRun,
		RunE:             cmdUtils.CallHelpCommand,
	}
	authCmd.AddCommand(a.generateTokenCommand())

	return authCmd
}

func (a *AuthCommand) generateTokenCommand() *cobra.Command {
	opts := generateTokenOptions{}
	configOpts := config.ConfigOptions{
		{
			Name:           "ec256-public-key",
			Usage:          "The EC256 Public Key the API uses to validate tokens. Used to check the issued token.",
			OptType:        types.String,
			CustomSetValue: cmdUtils.SetConfigOptionEC256PublicKey,
			ConfigKey:      &opts.EC256PublicKey,
			Required:       true,
		},
		{
			Name:           "ec256-private-key",
			Usage:          "The EC256 Private Key used to sign the token. This EC key needs to be at least as strong as prime256v1 (P-256).",
			OptType:        types.String,
			CustomSetValue: cmdUtils.SetConfigOptionEC256PrivateKey,
			ConfigKey:      &opts.EC256PrivateKey,
			Required:       true,
		},
		{
			Name:      "principal-id",
			Usage:     "The ID of the principal the token is issued to",
			OptType:   types.String,
			ConfigKey: &opts.PrincipalID,
			Required:  true,
		},
		{
			Name:           "expires-in",
			Usage:          "How long the token stays valid, e.g. 15m or 24h",
			OptType:        types.String,
			CustomSetValue: cmdUtils.SetConfigOptionDuration,
			ConfigKey:      &opts.ExpiresIn,
			FlagDefault:    "1h",
			Required:       false,
		},
		{
			Name:        "superadmin",
			Usage:       "Grant the superadmin capability",
			OptType:     types.Bool,
			ConfigKey:   &opts.Superadmin,
			FlagDefault: false,
			Required:    false,
		},
	}

	generateTokenCmd := &cobra.Command{
		Use:   "generate-token",
		Short: "Issues a signed bearer token for the API",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cmdUtils.PropagatePersistentPreRun(cmd, args)

			configOpts.Require()
			if err := configOpts.SetValues(); err != nil {
				log.Ctx(cmd.Context()).Fatalf("Error setting values of config options: %s", err.Error())
			}
		},
		Run: func(cmd *cobra.Command, _ []string) {
			ctx := cmd.Context()
			token, err := generateToken(opts, time.Now())
			if err != nil {
				log.Ctx(ctx).Fatalf("Error generating token: %s", err.Error())
			}

			fmt.Fprintln(cmd.OutOrStdout(), token)
		},
	}
	if err := configOpts.Init(generateTokenCmd); err != nil {
		log.Ctx(generateTokenCmd.Context()).Fatalf("Error initializing generateTokenCmd config options: %s", err.Error())
	}

	return generateTokenCmd
}

func generateToken(opts generateTokenOptions, now time.Time) (string, error) {
	if opts.ExpiresIn <= 0 {
		return "", fmt.Errorf("expires-in must be positive, got %s", opts.ExpiresIn)
	}

	authenticator, err := auth.NewAuthenticator(opts.EC256PublicKey, auth.WithPrivateKey(opts.EC256PrivateKey))
	if err != nil {
		return "", fmt.Errorf("creating authenticator: %w", err)
	}

	principal := auth.Principal{
		ID:        opts.PrincipalID,
		ExpiresAt: now.Add(opts.ExpiresIn),
		Active:    true,
	}
	if opts.Superadmin {
		principal.Capabilities = []auth.Capability{auth.CapabilitySuperadmin}
	}

	token, err := authenticator.GenerateToken(principal)
	if err != nil {
		return "", fmt.Errorf("signing token for %s: %w", opts.PrincipalID, err)
	}
	return token, nil
}
