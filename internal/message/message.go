package message

import (
	"errors"
	"fmt"
	"html/template"
	"strings"

	"github.com/schoolhub/schoolhub-backend/internal/htmltemplate"
	"github.com/schoolhub/schoolhub-backend/internal/utils"
)

type Message struct {
	ToPhoneNumber string
	ToEmail       string
	Title         string
	// Body is the plain text content. SMS messengers send it as is and email messengers wrap it in the default layout
	// unless HTMLBody is set.
	Body     string
	HTMLBody string
}

// ValidateFor checks that the message carries what messengerType needs to deliver it.
func (m Message) ValidateFor(messengerType MessengerType) error {
	if messengerType.IsSMS() {
		if err := utils.ValidatePhoneNumber(m.ToPhoneNumber); err != nil {
			return fmt.Errorf("invalid message: %w", err)
		}
		if strings.TrimSpace(m.Body) == "" {
			return errors.New("message is empty")
		}
	}

	if messengerType.IsEmail() {
		if err := utils.ValidateEmail(m.ToEmail); err != nil {
			return fmt.Errorf("invalid e-mail: %w", err)
		}
		if strings.TrimSpace(m.Title) == "" {
			return errors.New("invalid e-mail: title is empty")
		}
		if strings.TrimSpace(m.Body) == "" && strings.TrimSpace(m.HTMLBody) == "" {
			return errors.New("message is empty")
		}
	}
	return nil
}

// SupportedChannels lists the channels the message has a recipient for, email first.
func (m Message) SupportedChannels() []MessageChannel {
	var channels []MessageChannel
	if m.ToEmail != "" {
		channels = append(channels, MessageChannelEmail)
	}
	if m.ToPhoneNumber != "" {
		channels = append(channels, MessageChannelSMS)
	}
	return channels
}

// emailHTML returns the HTML part of the email.
func (m Message) emailHTML() (string, error) {
	if m.HTMLBody != "" {
		return m.HTMLBody, nil
	}
	html, err := htmltemplate.ExecuteHTMLTemplateForEmailEmptyBody(htmltemplate.EmptyBodyEmailTemplate{Body: template.HTML(template.HTMLEscapeString(m.Body))})
	if err != nil {
		return "", fmt.Errorf("generating html template: %w", err)
	}
	return html, nil
}

// String keeps recipients out of the logs.
func (m Message) String() string {
	return fmt.Sprintf("Message{ToPhoneNumber: %s, ToEmail: %s, Title: %q}",
		utils.TruncateString(m.ToPhoneNumber, 3), utils.TruncateString(m.ToEmail, 3), m.Title)
}
