package message

import (
	"context"
	"fmt"
	"strconv"

	"github.com/stellar/go-stellar-sdk/support/log"
	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/schoolhub/schoolhub-backend/internal/utils"
)

type twilioApiInterface interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

type twilioClient struct {
	apiService twilioApiInterface
	senderID   string
}

func (t *twilioClient) MessengerType() MessengerType {
	return MessengerTypeTwilioSMS
}

func (t *twilioClient) SendMessage(ctx context.Context, message Message) error {
	if err := message.ValidateFor(t.MessengerType()); err != nil {
		return fmt.Errorf("validating SMS message: %w", err)
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(message.ToPhoneNumber)
	params.SetBody(message.Body)
	params.SetMessagingServiceSid(t.senderID)

	resp, err := t.apiService.CreateMessage(params)
	if err != nil {
		return fmt.Errorf("sending Twilio SMS: %w", err)
	}
	if resp.ErrorCode != nil || resp.ErrorMessage != nil {
		return fmt.Errorf("twilio rejected the SMS: code=%s message=%q", twilioErrorCode(resp.ErrorCode), deref(resp.ErrorMessage))
	}

	log.Ctx(ctx).Debugf("Twilio sent an SMS to %q", utils.TruncateString(message.ToPhoneNumber, 3))
	return nil
}

func twilioErrorCode(code *int) string {
	if code == nil {
		return "unknown"
	}
	return strconv.Itoa(*code)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// NewTwilioClient sends SMS through a Twilio messaging service.
func NewTwilioClient(accountSid, authToken, senderID string) (*twilioClient, error) {
	err := requireCredentials("twilio",
		credential{"accountSid", &accountSid},
		credential{"authToken", &authToken},
		credential{"senderID", &senderID},
	)
	if err != nil {
		return nil, err
	}

	restClient := twilio.NewRestClientWithParams(twilio.ClientParams{Username: accountSid, Password: authToken})
	return &twilioClient{apiService: restClient.Api, senderID: senderID}, nil
}

var _ MessengerClient = (*twilioClient)(nil)
