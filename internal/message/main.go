package message

import (
	"context"
	"fmt"
	"strings"
)

type MessengerType string

const (
	MessengerTypeTwilioSMS   MessengerType = "TWILIO_SMS"
	MessengerTypeTwilioEmail MessengerType = "TWILIO_EMAIL"
	MessengerTypeAWSSMS      MessengerType = "AWS_SMS"
	MessengerTypeAWSEmail    MessengerType = "AWS_EMAIL"
	// MessengerTypeDryRun logs messages instead of sending them.
	MessengerTypeDryRun MessengerType = "DRY_RUN"
)

// channels of every supported messenger type. DRY_RUN stands in for both.
var messengerChannels = map[MessengerType]struct{ sms, email bool }{
	MessengerTypeTwilioSMS:   {sms: true},
	MessengerTypeTwilioEmail: {email: true},
	MessengerTypeAWSSMS:      {sms: true},
	MessengerTypeAWSEmail:    {email: true},
	MessengerTypeDryRun:      {sms: true, email: true},
}

func (mt MessengerType) All() []MessengerType {
	return []MessengerType{MessengerTypeTwilioSMS, MessengerTypeTwilioEmail, MessengerTypeAWSSMS, MessengerTypeAWSEmail, MessengerTypeDryRun}
}

func ParseMessengerType(messengerTypeStr string) (MessengerType, error) {
	mType := MessengerType(strings.ToUpper(strings.TrimSpace(messengerTypeStr)))
	if _, ok := messengerChannels[mType]; !ok {
		return "", fmt.Errorf("invalid message sender type %q", mType)
	}
	return mType, nil
}

func (mt MessengerType) IsSMS() bool {
	return messengerChannels[mt].sms
}

func (mt MessengerType) IsEmail() bool {
	return messengerChannels[mt].email
}

type MessengerOptions struct {
	MessengerType MessengerType

	TwilioAccountSID            string
	TwilioAuthToken             string
	TwilioServiceSID            string
	TwilioSendGridAPIKey        string
	TwilioSendGridSenderAddress string

	AWSAccessKeyID     string
	AWSSecretAccessKey string
	AWSRegion          string
	AWSSNSSenderID     string
	AWSSESSenderID     string
}

// GetClient builds the messenger selected by opts.MessengerType out of the matching credentials.
func GetClient(ctx context.Context, opts MessengerOptions) (MessengerClient, error) {
	switch opts.MessengerType {
	case MessengerTypeDryRun:
		return NewDryRunClient(), nil
	case MessengerTypeTwilioSMS:
		return NewTwilioClient(opts.TwilioAccountSID, opts.TwilioAuthToken, opts.TwilioServiceSID)
	case MessengerTypeTwilioEmail:
		return NewTwilioSendGridClient(opts.TwilioSendGridAPIKey, opts.TwilioSendGridSenderAddress)
	case MessengerTypeAWSSMS:
		return NewAWSSNSClient(ctx, opts.AWSAccessKeyID, opts.AWSSecretAccessKey, opts.AWSRegion, opts.AWSSNSSenderID)
	case MessengerTypeAWSEmail:
		return NewAWSSESClient(ctx, opts.AWSAccessKeyID, opts.AWSSecretAccessKey, opts.AWSRegion, opts.AWSSESSenderID)
	}
	return nil, fmt.Errorf("unknown message sender type: %q", opts.MessengerType)
}
