package message

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/stellar/go-stellar-sdk/support/log"

	"github.com/schoolhub/schoolhub-backend/internal/utils"
)

type awsSNSInterface interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

var _ awsSNSInterface = (*sns.Client)(nil)

type awsSNSClient struct {
	snsService awsSNSInterface
	senderID   string
}

func (a *awsSNSClient) MessengerType() MessengerType {
	return MessengerTypeAWSSMS
}

func (a *awsSNSClient) SendMessage(ctx context.Context, message Message) error {
	if err := message.ValidateFor(a.MessengerType()); err != nil {
		return fmt.Errorf("validating message to send an SMS through AWS: %w", err)
	}

	attributes := map[string]types.MessageAttributeValue{
		"AWS.SNS.SMS.SMSType": {StringValue: aws.String("Transactional"), DataType: aws.String("String")},
	}
	if a.senderID != "" {
		attributes["AWS.SNS.SMS.SenderID"] = types.MessageAttributeValue{StringValue: aws.String(a.senderID), DataType: aws.String("String")}
	}

	_, err := a.snsService.Publish(ctx, &sns.PublishInput{
		PhoneNumber:       aws.String(message.ToPhoneNumber),
		Message:           aws.String(message.Body),
		MessageAttributes: attributes,
	})
	if err != nil {
		return fmt.Errorf("sending AWS SNS SMS: %w", err)
	}

	log.Ctx(ctx).Debugf("AWS SNS sent an SMS to %q", utils.TruncateString(message.ToPhoneNumber, 3))
	return nil
}

// NewAWSSNSClient creates an SMS messenger. The sender ID is optional.
func NewAWSSNSClient(ctx context.Context, accessKeyID, secretAccessKey, region, senderID string) (*awsSNSClient, error) {
	cfg, err := loadAWSConfig(ctx, accessKeyID, secretAccessKey, region)
	if err != nil {
		return nil, err
	}
	return &awsSNSClient{snsService: sns.NewFromConfig(cfg), senderID: strings.TrimSpace(senderID)}, nil
}

var _ MessengerClient = (*awsSNSClient)(nil)
