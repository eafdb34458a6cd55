package dependencyinjection

import (
	"context"
	"fmt"

	"github.com/schoolhub/schoolhub-backend/internal/message"
)

const MessageDispatcherInstanceName = "message_dispatcher_instance"

// MessageDispatcherOpts configures the channels used to notify school admins. A nil channel is left unregistered.
type MessageDispatcherOpts struct {
	EmailOpts *EmailClientOptions
	SMSOpts   *SMSClientOptions
}

// NewMessageDispatcher is shared by the API handlers and the conversion notifier.
func NewMessageDispatcher(ctx context.Context, opts MessageDispatcherOpts) (*message.MessageDispatcher, error) {
	return getOrCreate(MessageDispatcherInstanceName, "MessageDispatcher", func() (*message.MessageDispatcher, error) {
		dispatcher := message.NewMessageDispatcher()

		if opts.EmailOpts != nil {
			emailClient, err := NewEmailClient(ctx, *opts.EmailOpts)
			if err != nil {
				return nil, fmt.Errorf("creating email client: %w", err)
			}
			dispatcher.RegisterClient(ctx, message.MessageChannelEmail, emailClient)
		}
		if opts.SMSOpts != nil {
			smsClient, err := NewSMSClient(ctx, *opts.SMSOpts)
			if err != nil {
				return nil, fmt.Errorf("creating SMS client: %w", err)
			}
			dispatcher.RegisterClient(ctx, message.MessageChannelSMS, smsClient)
		}
		return dispatcher, nil
	})
}
