package message

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockAWSSES struct {
	mock.Mock
}

func (m *mockAWSSES) SendEmail(ctx context.Context, params *ses.SendEmailInput, _ ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ses.SendEmailOutput), args.Error(1)
}

func Test_NewAWSSESClient(t *testing.T) {
	ctx := context.Background()

	_, err := NewAWSSESClient(ctx, "AKIA", "secret", "us-east-1", "not-an-email")
	assert.EqualError(t, err, `aws SES (email) senderID is invalid: the provided email "not-an-email" is not valid`)

	_, err = NewAWSSESClient(ctx, "AKIA", "", "us-east-1", "no-reply@schoolhub.app")
	assert.EqualError(t, err, "aws secretAccessKey is empty")

	_, err = NewAWSSESClient(ctx, "AKIA", "secret", " ", "no-reply@schoolhub.app")
	assert.EqualError(t, err, "aws region is empty")

	client, err := NewAWSSESClient(ctx, "AKIA", "secret", "us-east-1", "no-reply@schoolhub.app")
	require.NoError(t, err)
	assert.Equal(t, "no-reply@schoolhub.app", client.senderID)
}

func Test_AWSSESClient_SendMessage(t *testing.T) {
	ctx := context.Background()
	message := Message{ToEmail: "office@greenwood.edu", Title: "Your school is ready", Body: "Welcome aboard"}

	t.Run("invalid message", func(t *testing.T) {
		client := &awsSESClient{emailService: &mockAWSSES{}}
		err := client.SendMessage(ctx, Message{})
		assert.EqualError(t, err, "validating message to send an email through AWS: invalid e-mail: email cannot be empty")
	})

	t.Run("sends the wrapped body", func(t *testing.T) {
		sesMock := &mockAWSSES{}
		sesMock.On("SendEmail", ctx, mock.MatchedBy(func(in *ses.SendEmailInput) bool {
			return *in.Source == "no-reply@schoolhub.app" &&
				in.Destination.ToAddresses[0] == message.ToEmail &&
				*in.Message.Subject.Data == message.Title &&
				assert.Contains(t, *in.Message.Body.Html.Data, "Welcome aboard")
		})).Return(&ses.SendEmailOutput{}, nil).Once()

		client := &awsSESClient{emailService: sesMock, senderID: "no-reply@schoolhub.app"}
		require.NoError(t, client.SendMessage(ctx, message))
		sesMock.AssertExpectations(t)
	})

	t.Run("provider error", func(t *testing.T) {
		sesMock := &mockAWSSES{}
		sesMock.On("SendEmail", ctx, mock.Anything).Return(nil, errors.New("throttled")).Once()

		client := &awsSESClient{emailService: sesMock, senderID: "no-reply@schoolhub.app"}
		assert.EqualError(t, client.SendMessage(ctx, message), "sending AWS SES email: throttled")
		sesMock.AssertExpectations(t)
	})
}
