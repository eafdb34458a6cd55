package conversion

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/stellar/go-stellar-sdk/support/log"

	"github.com/schoolhub/schoolhub-backend/internal/data"
	"github.com/schoolhub/schoolhub-backend/internal/htmltemplate"
	"github.com/schoolhub/schoolhub-backend/internal/message"
	"github.com/schoolhub/schoolhub-backend/internal/utils"
)

// ContactPhoneField is the inquiry form field used as the SMS fallback recipient.
const ContactPhoneField = "contact_phone"

var notificationChannels = []message.MessageChannel{message.MessageChannelEmail, message.MessageChannelSMS}

// MessageNotifier renders the conversion notifications and sends them through the message dispatcher.
type MessageNotifier struct {
	dispatcher message.MessageDispatcherInterface
	// baseURL is the platform URL. Tenants are served at https://<domain>.<baseURL host>.
	baseURL *url.URL
}

func NewMessageNotifier(dispatcher message.MessageDispatcherInterface, baseURL string) (*MessageNotifier, error) {
	if dispatcher == nil {
		return nil, errors.New("dispatcher cannot be nil")
	}
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q", baseURL)
	}
	return &MessageNotifier{dispatcher: dispatcher, baseURL: u}, nil
}

func (n *MessageNotifier) loginLink(domain string) string {
	u := *n.baseURL
	u.Host = domain + "." + n.baseURL.Host
	u.Path = "/login"
	return u.String()
}

func (n *MessageNotifier) TenantReady(ctx context.Context, admin *data.Admin, tenant *data.Tenant) error {
	schoolName := admin.Name
	if admin.SchoolName != nil && *admin.SchoolName != "" {
		schoolName = *admin.SchoolName
	}
	link := n.loginLink(tenant.Domain)

	html, err := htmltemplate.ExecuteHTMLTemplateForTenantReadyEmailMessage(htmltemplate.TenantReadyEmailMessageTemplate{
		AdminName:  admin.Name,
		SchoolName: schoolName,
		Domain:     tenant.Domain,
		LoginLink:  link,
	})
	if err != nil {
		return fmt.Errorf("rendering tenant ready email: %w", err)
	}

	return n.send(ctx, message.Message{
		ToEmail:  admin.Email,
		Title:    fmt.Sprintf("%s is ready on SchoolHub", schoolName),
		Body:     fmt.Sprintf("%s is ready. Sign in at %s", schoolName, link),
		HTMLBody: html,
	})
}

func (n *MessageNotifier) SchoolApproved(ctx context.Context, inquiry *data.SchoolInquiry, school *data.School, plan *data.SubscriptionPlan) error {
	link := n.loginLink(school.Domain)
	var ends string
	if school.SubscriptionEndDate != nil {
		ends = school.SubscriptionEndDate.Format(utils.DateLayout)
	}

	html, err := htmltemplate.ExecuteHTMLTemplateForSchoolApprovedEmailMessage(htmltemplate.SchoolApprovedEmailMessageTemplate{
		SchoolName:       school.Name,
		Domain:           school.Domain,
		SchoolCode:       school.SchoolCode,
		PlanName:         plan.Name,
		SubscriptionEnds: ends,
		LoginLink:        link,
	})
	if err != nil {
		return fmt.Errorf("rendering school approved email: %w", err)
	}

	return n.send(ctx, message.Message{
		ToEmail:       school.Email,
		ToPhoneNumber: contactPhone(inquiry),
		Title:         fmt.Sprintf("%s has been approved", school.Name),
		Body:          fmt.Sprintf("%s has been approved, school code %s. Sign in at %s", school.Name, school.SchoolCode, link),
		HTMLBody:      html,
	})
}

func (n *MessageNotifier) send(ctx context.Context, msg message.Message) error {
	messengerType, err := n.dispatcher.SendMessage(ctx, msg, notificationChannels)
	if err != nil {
		return fmt.Errorf("sending notification: %w", err)
	}
	log.Ctx(ctx).Debugf("notification %s sent through %s", msg, messengerType)
	return nil
}

// contactPhone returns the valid E.164 contact phone of the inquiry form, if any.
func contactPhone(inquiry *data.SchoolInquiry) string {
	if inquiry == nil {
		return ""
	}
	phone, ok := inquiry.FormData[ContactPhoneField].(string)
	if !ok {
		return ""
	}
	phone = strings.TrimSpace(phone)
	if utils.ValidatePhoneNumber(phone) != nil {
		return ""
	}
	return phone
}

var _ Notifier = (*MessageNotifier)(nil)
