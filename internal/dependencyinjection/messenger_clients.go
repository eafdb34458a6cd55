package dependencyinjection

import (
	"context"
	"fmt"

	"github.com/stellar/go-stellar-sdk/support/log"

	"github.com/schoolhub/schoolhub-backend/internal/message"
)

const (
	EmailClientInstanceName = "email_client_instance"
	SMSClientInstanceName   = "sms_client_instance"
)

type EmailClientOptions struct {
	EmailType        message.MessengerType
	MessengerOptions *message.MessengerOptions
}

type SMSClientOptions struct {
	SMSType          message.MessengerType
	MessengerOptions *message.MessengerOptions
}

// NewEmailClient creates a new email client instance, or retrieves an instance that was already created before.
func NewEmailClient(ctx context.Context, opts EmailClientOptions) (message.MessengerClient, error) {
	if !opts.EmailType.IsEmail() {
		return nil, fmt.Errorf("trying to create an Email client with a non-supported Email type: %q", opts.EmailType)
	}
	return newMessengerClient(ctx, EmailClientInstanceName, opts.EmailType, opts.MessengerOptions)
}

// NewSMSClient creates a new SMS client instance, or retrieves an instance that was already created before.
func NewSMSClient(ctx context.Context, opts SMSClientOptions) (message.MessengerClient, error) {
	if !opts.SMSType.IsSMS() {
		return nil, fmt.Errorf("trying to create a SMS client with a non-supported SMS type: %q", opts.SMSType)
	}
	return newMessengerClient(ctx, SMSClientInstanceName, opts.SMSType, opts.MessengerOptions)
}

// newMessengerClient stores one client per channel and provider, e.g. "sms_client_instance-TWILIO_SMS".
func newMessengerClient(ctx context.Context, prefix string, messengerType message.MessengerType, messengerOpts *message.MessengerOptions) (message.MessengerClient, error) {
	instanceName := fmt.Sprintf("%s-%s", prefix, messengerType)
	return getOrCreate(instanceName, prefix, func() (message.MessengerClient, error) {
		opts := message.MessengerOptions{}
		if messengerOpts != nil {
			opts = *messengerOpts
		}
		opts.MessengerType = messengerType

		log.Ctx(ctx).Infof("⚙️ Setting up %s with %v", prefix, messengerType)
		client, err := message.GetClient(ctx, opts)
		if err != nil {
			return nil, fmt.Errorf("creating %s: %w", prefix, err)
		}
		return client, nil
	})
}
