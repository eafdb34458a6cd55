package message

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func Test_MessageDispatcher_GetClient(t *testing.T) {
	ctx := context.Background()
	dispatcher := NewMessageDispatcher()
	emailClient := NewMessengerClientMock(t)
	emailClient.On("MessengerType").Return(MessengerTypeAWSEmail).Once()
	dispatcher.RegisterClient(ctx, MessageChannelEmail, emailClient)

	got, err := dispatcher.GetClient(MessageChannelEmail)
	require.NoError(t, err)
	assert.Equal(t, emailClient, got)

	_, err = dispatcher.GetClient(MessageChannelSMS)
	assert.EqualError(t, err, `no client registered for channel "SMS"`)
}

func Test_MessageDispatcher_SendMessage(t *testing.T) {
	ctx := context.Background()
	priority := []MessageChannel{MessageChannelEmail, MessageChannelSMS}
	both := Message{ToEmail: "office@greenwood.edu", ToPhoneNumber: "+14155555555", Title: "Welcome", Body: "ready"}

	newDispatcher := func(t *testing.T) (*MessageDispatcher, *MessengerClientMock, *MessengerClientMock) {
		d := NewMessageDispatcher()
		email := NewMessengerClientMock(t)
		sms := NewMessengerClientMock(t)
		email.On("MessengerType").Return(MessengerTypeAWSEmail)
		sms.On("MessengerType").Return(MessengerTypeTwilioSMS)
		d.RegisterClient(ctx, MessageChannelEmail, email)
		d.RegisterClient(ctx, MessageChannelSMS, sms)
		return d, email, sms
	}

	t.Run("first channel succeeds", func(t *testing.T) {
		d, email, _ := newDispatcher(t)
		email.On("SendMessage", ctx, both).Return(nil).Once()

		mt, err := d.SendMessage(ctx, both, priority)
		require.NoError(t, err)
		assert.Equal(t, MessengerTypeAWSEmail, mt)
	})

	t.Run("falls back to sms", func(t *testing.T) {
		d, email, sms := newDispatcher(t)
		email.On("SendMessage", ctx, both).Return(errors.New("bounced")).Once()
		sms.On("SendMessage", ctx, both).Return(nil).Once()

		mt, err := d.SendMessage(ctx, both, priority)
		require.NoError(t, err)
		assert.Equal(t, MessengerTypeTwilioSMS, mt)
	})

	t.Run("skips channels without a recipient", func(t *testing.T) {
		d, _, sms := newDispatcher(t)
		smsOnly := Message{ToPhoneNumber: "+14155555555", Body: "ready"}
		sms.On("SendMessage", ctx, smsOnly).Return(nil).Once()

		mt, err := d.SendMessage(ctx, smsOnly, priority)
		require.NoError(t, err)
		assert.Equal(t, MessengerTypeTwilioSMS, mt)
	})

	t.Run("every channel fails", func(t *testing.T) {
		d, email, sms := newDispatcher(t)
		email.On("SendMessage", ctx, both).Return(errors.New("bounced")).Once()
		sms.On("SendMessage", ctx, both).Return(errors.New("opted out")).Once()

		_, err := d.SendMessage(ctx, both, priority)
		assert.ErrorContains(t, err, "EMAIL: bounced")
		assert.ErrorContains(t, err, "SMS: opted out")
	})

	t.Run("no recipient at all", func(t *testing.T) {
		d, email, sms := newDispatcher(t)

		_, err := d.SendMessage(ctx, Message{Title: "Welcome", Body: "ready"}, priority)
		assert.ErrorIs(t, err, ErrNoSupportedChannel)
		email.AssertNotCalled(t, "SendMessage", mock.Anything, mock.Anything)
		sms.AssertNotCalled(t, "SendMessage", mock.Anything, mock.Anything)
	})
}
