package message

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/stellar/go-stellar-sdk/support/log"

	"github.com/schoolhub/schoolhub-backend/internal/utils"
)

type twilioSendGridInterface interface {
	Send(email *mail.SGMailV3) (*rest.Response, error)
}

var _ twilioSendGridInterface = (*sendgrid.Client)(nil)

type twilioSendGridClient struct {
	client        twilioSendGridInterface
	senderAddress string
}

func (t *twilioSendGridClient) MessengerType() MessengerType {
	return MessengerTypeTwilioEmail
}

func (t *twilioSendGridClient) SendMessage(ctx context.Context, message Message) error {
	if err := message.ValidateFor(t.MessengerType()); err != nil {
		return fmt.Errorf("validating message to send an email through SendGrid: %w", err)
	}

	html, err := message.emailHTML()
	if err != nil {
		return err
	}
	email := mail.NewSingleEmail(mail.NewEmail("", t.senderAddress), message.Title, mail.NewEmail("", message.ToEmail), message.Body, html)

	response, err := t.client.Send(email)
	if err != nil {
		return fmt.Errorf("sending SendGrid email: %w", err)
	}
	if response.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("sendgrid rejected the email: status=%d body=%s", response.StatusCode, response.Body)
	}

	log.Ctx(ctx).Debugf("SendGrid sent an email to %q", utils.TruncateString(message.ToEmail, 3))
	return nil
}

// NewTwilioSendGridClient sends emails through SendGrid. The sender address must be verified on the account.
func NewTwilioSendGridClient(apiKey string, senderAddress string) (*twilioSendGridClient, error) {
	if err := requireCredentials("sendgrid", credential{"apiKey", &apiKey}); err != nil {
		return nil, err
	}
	senderAddress = strings.TrimSpace(senderAddress)
	if err := utils.ValidateEmail(senderAddress); err != nil {
		return nil, fmt.Errorf("sendgrid senderAddress is invalid: %w", err)
	}
	return &twilioSendGridClient{client: sendgrid.NewSendClient(apiKey), senderAddress: senderAddress}, nil
}

var _ MessengerClient = (*twilioSendGridClient)(nil)
