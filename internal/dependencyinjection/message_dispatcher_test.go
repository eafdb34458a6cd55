package dependencyinjection

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schoolhub/schoolhub-backend/internal/message"
)

func Test_NewEmailClient(t *testing.T) {
	ctx := context.Background()

	t.Run("rejects SMS messenger types", func(t *testing.T) {
		ClearInstancesTestHelper(t)

		client, err := NewEmailClient(ctx, EmailClientOptions{EmailType: message.MessengerTypeTwilioSMS})
		assert.Nil(t, client)
		assert.EqualError(t, err, `trying to create an Email client with a non-supported Email type: "TWILIO_SMS"`)
	})

	t.Run("creates and returns the same instance on the second call", func(t *testing.T) {
		ClearInstancesTestHelper(t)
		opts := EmailClientOptions{EmailType: message.MessengerTypeDryRun}

		client, err := NewEmailClient(ctx, opts)
		require.NoError(t, err)
		clientDuplicate, err := NewEmailClient(ctx, opts)
		require.NoError(t, err)

		assert.Same(t, client, clientDuplicate)
		assert.Equal(t, message.MessengerTypeDryRun, client.MessengerType())
	})
}

func Test_NewSMSClient(t *testing.T) {
	ClearInstancesTestHelper(t)

	client, err := NewSMSClient(context.Background(), SMSClientOptions{SMSType: message.MessengerTypeAWSEmail})
	assert.Nil(t, client)
	assert.EqualError(t, err, `trying to create a SMS client with a non-supported SMS type: "AWS_EMAIL"`)
}

func Test_NewMessageDispatcher(t *testing.T) {
	ctx := context.Background()

	t.Run("registers the configured channels", func(t *testing.T) {
		ClearInstancesTestHelper(t)

		dispatcher, err := NewMessageDispatcher(ctx, MessageDispatcherOpts{
			EmailOpts: &EmailClientOptions{EmailType: message.MessengerTypeDryRun},
		})
		require.NoError(t, err)

		emailClient, err := dispatcher.GetClient(message.MessageChannelEmail)
		require.NoError(t, err)
		assert.Equal(t, message.MessengerTypeDryRun, emailClient.MessengerType())

		_, err = dispatcher.GetClient(message.MessageChannelSMS)
		assert.Error(t, err)

		dispatcherDuplicate, err := NewMessageDispatcher(ctx, MessageDispatcherOpts{})
		require.NoError(t, err)
		assert.Same(t, dispatcher, dispatcherDuplicate)
	})

	t.Run("fails on an invalid SMS type", func(t *testing.T) {
		ClearInstancesTestHelper(t)

		dispatcher, err := NewMessageDispatcher(ctx, MessageDispatcherOpts{
			SMSOpts: &SMSClientOptions{SMSType: "CARRIER_PIGEON"},
		})
		assert.Nil(t, dispatcher)
		assert.ErrorContains(t, err, "creating SMS client")
	})
}
