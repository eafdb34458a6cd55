package utils

import (
	"crypto/ecdsa"
	"fmt"
	"net/url"
	"strings"
	"time"

	jwtgo "github.com/golang-jwt/jwt/v4"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"github.com/stellar/go-stellar-sdk/support/config"
	"github.com/stellar/go-stellar-sdk/support/log"

	"github.com/schoolhub/schoolhub-backend/internal/crashtracker"
	"github.com/schoolhub/schoolhub-backend/internal/message"
	"github.com/schoolhub/schoolhub-backend/internal/monitor"
)

// minECKeyBitSize is the curve size of prime256v1 (P-256).
const minECKeyBitSize = 256

// setParsedValue reads the raw value of co, parses it and stores it in co.ConfigKey, which must be a *T.
func setParsedValue[T any](co *config.ConfigOption, what string, parse func(string) (T, error)) error {
	parsed, err := parse(viper.GetString(co.Name))
	if err != nil {
		return fmt.Errorf("couldn't parse %s: %w", what, err)
	}

	key, ok := co.ConfigKey.(*T)
	if !ok {
		return fmt.Errorf("configKey has an invalid type %T", co.ConfigKey)
	}
	*key = parsed
	return nil
}

func SetConfigOptionMessengerType(co *config.ConfigOption) error {
	return setParsedValue(co, "messenger type", message.ParseMessengerType)
}

func SetConfigOptionMetricType(co *config.ConfigOption) error {
	return setParsedValue(co, "metric type", monitor.ParseMetricType)
}

func SetConfigOptionCrashTrackerType(co *config.ConfigOption) error {
	return setParsedValue(co, "crash tracker type", crashtracker.ParseCrashTrackerType)
}

func SetConfigOptionLogLevel(co *config.ConfigOption) error {
	logLevelStr := viper.GetString(co.Name)
	logLevel, err := logrus.ParseLevel(logLevelStr)
	if err != nil {
		return fmt.Errorf("couldn't parse log level: %w", err)
	}

	key, ok := co.ConfigKey.(*logrus.Level)
	if !ok {
		return fmt.Errorf("configKey has an invalid type %T", co.ConfigKey)
	}
	*key = logLevel

	if config.IsExplicitlySet(co) {
		log.Debugf("Setting log level to: %q", logLevel)
		log.DefaultLogger.SetLevel(*key)
	} else {
		log.Debugf("Using default log level: %q", logLevel)
	}
	return nil
}

type ecKeyParser func(pem []byte) (*ecdsa.PublicKey, error)

func parseECPublicKey(pem []byte) (*ecdsa.PublicKey, error) {
	return jwtgo.ParseECPublicKeyFromPEM(pem)
}

func parseECPrivateKey(pem []byte) (*ecdsa.PublicKey, error) {
	key, err := jwtgo.ParseECPrivateKeyFromPEM(pem)
	if err != nil {
		return nil, err
	}
	return &key.PublicKey, nil
}

// setECKey validates a PEM encoded EC key of at least P-256 and stores the PEM string. Literal \n sequences, common
// in env files, are turned into newlines.
func setECKey(co *config.ConfigOption, name string, parse ecKeyParser) error {
	key, ok := co.ConfigKey.(*string)
	if !ok {
		return fmt.Errorf("not a valid %s: the expected type for this config key is a string, but got a %T instead", name, co.ConfigKey)
	}

	pem := strings.ReplaceAll(viper.GetString(co.Name), `\n`, "\n")
	publicKey, err := parse([]byte(pem))
	if err != nil {
		return fmt.Errorf("parsing %s: %w", name, err)
	}
	if bits := publicKey.Curve.Params().BitSize; bits < minECKeyBitSize {
		return fmt.Errorf("parsing %s: key must be at least as strong as P-256, got %d bits", name, bits)
	}

	*key = pem
	return nil
}

func SetConfigOptionEC256PublicKey(co *config.ConfigOption) error {
	return setECKey(co, "EC256PublicKey", parseECPublicKey)
}

func SetConfigOptionEC256PrivateKey(co *config.ConfigOption) error {
	return setECKey(co, "EC256PrivateKey", parseECPrivateKey)
}

func SetCorsAllowedOrigins(co *config.ConfigOption) error {
	corsAllowedOriginsOptions := viper.GetString(co.Name)

	if corsAllowedOriginsOptions == "" {
		return fmt.Errorf("cors allowed addresses cannot be empty")
	}

	corsAllowedOrigins := strings.Split(corsAllowedOriginsOptions, ",")

	for _, address := range corsAllowedOrigins {
		_, err := url.ParseRequestURI(address)
		if err != nil {
			return fmt.Errorf("error parsing cors addresses: %w", err)
		}
		if address == "*" {
			log.Warn(`The value "*" for the CORS Allowed Origins is too permissive and not recommended.`)
		}
	}

	key, ok := co.ConfigKey.(*[]string)
	if !ok {
		return fmt.Errorf("the expected type for this config key is a string slice, but got a %T instead", co.ConfigKey)
	}
	*key = corsAllowedOrigins

	return nil
}

func SetConfigOptionURLString(co *config.ConfigOption) error {
	u := viper.GetString(co.Name)

	if u == "" {
		return fmt.Errorf("%s cannot be empty", co.Name)
	}

	_, err := url.ParseRequestURI(u)
	if err != nil {
		return fmt.Errorf("error parsing %s: %w", co.Name, err)
	}

	key, ok := co.ConfigKey.(*string)
	if !ok {
		return fmt.Errorf("the expected type for this config key is a string, but got a %T instead", co.ConfigKey)
	}
	*key = u

	return nil
}

// SetConfigOptionDuration parses values such as "90s" or "168h". Negative durations are rejected.
func SetConfigOptionDuration(co *config.ConfigOption) error {
	raw := viper.GetString(co.Name)

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("couldn't parse duration %s: %w", co.Name, err)
	}
	if d < 0 {
		return fmt.Errorf("%s cannot be negative, got %s", co.Name, d)
	}

	key, ok := co.ConfigKey.(*time.Duration)
	if !ok {
		return fmt.Errorf("the expected type for this config key is a time.Duration, but got a %T instead", co.ConfigKey)
	}
	*key = d

	return nil
}
