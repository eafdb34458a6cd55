package cmd

import (
	"context"
	"fmt"
	"go/types"

	"github.com/spf13/cobra"
	"github.com/stellar/go-stellar-sdk/support/config"
	"github.com/stellar/go-stellar-sdk/support/log"

	cmdUtils "github.com/schoolhub/schoolhub-backend/cmd/utils"
	"github.com/schoolhub/schoolhub-backend/internal/message"
)

// MessageCommand lets operators check the credentials of the messenger that notifies school admins, and send a test
// message through it.
type MessageCommand struct{}

type MessengerServiceInterface interface {
	GetClient(ctx context.Context, opts message.MessengerOptions) (message.MessengerClient, error)
	SendMessage(ctx context.Context, opts message.MessengerOptions, msg message.Message) error
}

type MessengerService struct{}

var _ MessengerServiceInterface = (*MessengerService)(nil)

func (m *MessengerService) GetClient(ctx context.Context, opts message.MessengerOptions) (message.MessengerClient, error) {
	return message.GetClient(ctx, opts)
}

func (m *MessengerService) SendMessage(ctx context.Context, opts message.MessengerOptions, msg message.Message) error {
	if err := msg.ValidateFor(opts.MessengerType); err != nil {
		return fmt.Errorf("validating message: %w", err)
	}

	client, err := m.GetClient(ctx, opts)
	if err != nil {
		return fmt.Errorf("getting messenger client: %w", err)
	}
	if err = client.SendMessage(ctx, msg); err != nil {
		return fmt.Errorf("sending message with %s: %w", client.MessengerType(), err)
	}
	return nil
}

func (c *MessageCommand) Command(messengerService MessengerServiceInterface) *cobra.Command {
	opts := message.MessengerOptions{}
	configOpts := config.ConfigOptions{
		{
			Name:           "message-sender-type",
			Usage:          fmt.Sprintf("The messenger to use. Options: %v", message.MessengerType("").All()),
			OptType:        types.String,
			CustomSetValue: cmdUtils.SetConfigOptionMessengerType,
			ConfigKey:      &opts.MessengerType,
			Required:       true,
		},
	}
	configOpts = append(configOpts, cmdUtils.TwilioConfigOptions(&opts)...)
	configOpts = append(configOpts, cmdUtils.AWSConfigOptions(&opts)...)

	messageCmd := &cobra.Command{
		Use:   "message",
		Short: "Messenger related commands",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cmdUtils.PropagatePersistentPreRun(cmd, args)
			configOpts.Require()
			if err := configOpts.SetValues(); err != nil {
				log.Ctx(cmd.Context()).Fatalf("Error setting values of config options: %v", err)
			}
		},
		RunE: cmdUtils.CallHelpCommand,
	}
	if err := configOpts.Init(messageCmd); err != nil {
		log.Ctx(messageCmd.Context()).Fatalf("initializing config options: %v", err)
	}

	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Builds the messenger client to validate its configuration, without sending anything",
		Run: func(cmd *cobra.Command, _ []string) {
			ctx := cmd.Context()
			if _, err := messengerService.GetClient(ctx, opts); err != nil {
				log.Ctx(ctx).Fatalf("Error mounting messenger client: %v", err)
			}
			log.Ctx(ctx).Infof("Messenger %s is correctly configured", opts.MessengerType)
		},
	}

	messageCmd.AddCommand(checkCmd, c.sendCommand(messengerService, &opts))
	return messageCmd
}

func (c *MessageCommand) sendCommand(messengerService MessengerServiceInterface, opts *message.MessengerOptions) *cobra.Command {
	var to string
	msg := message.Message{}
	configOpts := config.ConfigOptions{
		{
			Name:      "to",
			Usage:     "The recipient: an email address for email messengers, a phone number in E.164 for SMS messengers",
			OptType:   types.String,
			ConfigKey: &to,
			Required:  true,
		},
		{
			Name:        "title",
			Usage:       "The email subject. Ignored by SMS messengers.",
			OptType:     types.String,
			ConfigKey:   &msg.Title,
			FlagDefault: "SchoolHub test message",
			Required:    false,
		},
		{
			Name:      "message",
			Usage:     "The text of the message",
			OptType:   types.String,
			ConfigKey: &msg.Body,
			Required:  true,
		},
	}

	sendCmd := &cobra.Command{
		Use:   "send",
		Short: "Sends a test message",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cmdUtils.PropagatePersistentPreRun(cmd, args)
			configOpts.Require()
			if err := configOpts.SetValues(); err != nil {
				log.Ctx(cmd.Context()).Fatalf("Error setting values of config options: %v", err)
			}
		},
		Run: func(cmd *cobra.Command, _ []string) {
			ctx := cmd.Context()
			if opts.MessengerType.IsEmail() {
				msg.ToEmail = to
			} else {
				msg.ToPhoneNumber = to
			}
			if err := messengerService.SendMessage(ctx, *opts, msg); err != nil {
				log.Ctx(ctx).Fatalf("Error sending message: %v", err)
			}
			log.Ctx(ctx).Infof("Message sent to %s with %s", to, opts.MessengerType)
		},
	}
	if err := configOpts.Init(sendCmd); err != nil {
		log.Ctx(sendCmd.Context()).Fatalf("initializing config options: %v", err)
	}

	return sendCmd
}
