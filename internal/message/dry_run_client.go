package message

import (
	"context"

	"github.com/stellar/go-stellar-sdk/support/log"
)

type dryRunClient struct{}

func (c *dryRunClient) SendMessage(ctx context.Context, message Message) error {
	recipient := message.ToEmail
	if recipient == "" {
		recipient = message.ToPhoneNumber
	}
	log.Ctx(ctx).WithFields(log.F{
		"recipient": recipient,
		"subject":   message.Title,
	}).Infof("[DRY_RUN Messenger] %s", message.Body)
	return nil
}

func (c *dryRunClient) MessengerType() MessengerType {
	return MessengerTypeDryRun
}

func NewDryRunClient() *dryRunClient {
	return &dryRunClient{}
}

var _ MessengerClient = (*dryRunClient)(nil)
