package message

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/stellar/go-stellar-sdk/support/log"

	"github.com/schoolhub/schoolhub-backend/internal/utils"
)

type awsSESInterface interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

var _ awsSESInterface = (*ses.Client)(nil)

type awsSESClient struct {
	emailService awsSESInterface
	senderID     string
}

func (a *awsSESClient) MessengerType() MessengerType {
	return MessengerTypeAWSEmail
}

func (a *awsSESClient) SendMessage(ctx context.Context, message Message) error {
	if err := message.ValidateFor(a.MessengerType()); err != nil {
		return fmt.Errorf("validating message to send an email through AWS: %w", err)
	}

	input, err := generateAWSEmail(message, a.senderID)
	if err != nil {
		return fmt.Errorf("generating AWS SES email: %w", err)
	}
	if _, err = a.emailService.SendEmail(ctx, input); err != nil {
		return fmt.Errorf("sending AWS SES email: %w", err)
	}

	log.Ctx(ctx).Debugf("AWS SES sent an email to %q", utils.TruncateString(message.ToEmail, 3))
	return nil
}

func generateAWSEmail(message Message, sender string) (*ses.SendEmailInput, error) {
	html, err := message.emailHTML()
	if err != nil {
		return nil, err
	}
	return &ses.SendEmailInput{
		Destination: &types.Destination{ToAddresses: []string{message.ToEmail}},
		Message: &types.Message{
			Body: &types.Body{
				Html: &types.Content{Charset: aws.String("utf-8"), Data: aws.String(html)},
			},
			Subject: &types.Content{Charset: aws.String("utf-8"), Data: aws.String(message.Title)},
		},
		Source: aws.String(sender),
	}, nil
}

func NewAWSSESClient(ctx context.Context, accessKeyID, secretAccessKey, region, senderID string) (*awsSESClient, error) {
	senderID = strings.TrimSpace(senderID)
	if err := utils.ValidateEmail(senderID); err != nil {
		return nil, fmt.Errorf("aws SES (email) senderID is invalid: %w", err)
	}

	cfg, err := loadAWSConfig(ctx, accessKeyID, secretAccessKey, region)
	if err != nil {
		return nil, err
	}
	return &awsSESClient{emailService: ses.NewFromConfig(cfg), senderID: senderID}, nil
}

var _ MessengerClient = (*awsSESClient)(nil)
