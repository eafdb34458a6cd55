package htmltemplate

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"sync"
)

var (
	//go:embed tmpl/*.tmpl tmpl/**/*.tmpl
	Tmpl embed.FS

	//go:embed tmpl/email_style.css
	emailCSS string
)

// templates are parsed on first use and shared afterwards. html/template is safe for concurrent execution.
var templates = sync.OnceValues(func() (*template.Template, error) {
	funcMap := template.FuncMap{
		"EmailStyle": func() template.HTML {
			return template.HTML("<style>\n" + emailCSS + "</style>")
		},
	}
	t, err := template.New("").Funcs(funcMap).ParseFS(Tmpl, "tmpl/*.tmpl", "tmpl/**/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("error parsing embedded template files: %w", err)
	}
	return t, nil
})

// ExecuteHTMLTemplate renders one of the embedded templates by file name. Values are HTML escaped.
func ExecuteHTMLTemplate(templateName string, data interface{}) (string, error) {
	t, err := templates()
	if err != nil {
		return "", err
	}

	var out bytes.Buffer
	if err := t.ExecuteTemplate(&out, templateName, data); err != nil {
		return "", fmt.Errorf("executing html template: %w", err)
	}
	return out.String(), nil
}

// EmptyBodyEmailTemplate wraps ad-hoc messages, such as the ones sent from the CLI, in the email layout.
type EmptyBodyEmailTemplate struct {
	Body template.HTML
}

func ExecuteHTMLTemplateForEmailEmptyBody(data EmptyBodyEmailTemplate) (string, error) {
	return ExecuteHTMLTemplate("empty_body.tmpl", data)
}

// TenantReadyEmailMessageTemplate is sent to an admin whose account was converted into a school tenant.
type TenantReadyEmailMessageTemplate struct {
	AdminName  string
	SchoolName string
	Domain     string
	LoginLink  string
}

func ExecuteHTMLTemplateForTenantReadyEmailMessage(data TenantReadyEmailMessageTemplate) (string, error) {
	return ExecuteHTMLTemplate("tenant_ready_message.tmpl", data)
}

// SchoolApprovedEmailMessageTemplate is sent to the school email of an approved inquiry. An empty SubscriptionEnds
// reads as an open-ended subscription.
type SchoolApprovedEmailMessageTemplate struct {
	SchoolName       string
	Domain           string
	SchoolCode       string
	PlanName         string
	SubscriptionEnds string
	LoginLink        string
}

func ExecuteHTMLTemplateForSchoolApprovedEmailMessage(data SchoolApprovedEmailMessageTemplate) (string, error) {
	return ExecuteHTMLTemplate("school_approved_message.tmpl", data)
}
