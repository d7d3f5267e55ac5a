package notifier

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/omprakash24d/DriveRight-sub001/internal/events"
)

type emailTemplate struct {
	subject string
	body    *template.Template
}

var templates = map[string]emailTemplate{
	events.TplBookingConfirmation: {
		subject: "Your DriveRight booking is confirmed",
		body: template.Must(template.New(events.TplBookingConfirmation).Parse(strings.TrimSpace(`
Hi {{.name}},

Your payment of {{.currency}} {{.amount}}{{if .method}} ({{.method}}){{end}} was received and your booking {{.booking_id}} is confirmed.
{{- if .scheduled_date}}

Scheduled for: {{.scheduled_date}}
{{- end}}

See you at the school!
DriveRight Driving School
`))),
	},
	events.TplPaymentFailed: {
		subject: "Payment attempt failed",
		body: template.Must(template.New(events.TplPaymentFailed).Parse(strings.TrimSpace(`
Payment failed for booking {{.booking_id}} (transaction {{.transaction_id}}).
{{- if .reason}}
Reason: {{.reason}}
{{- end}}
`))),
	},
}

// Render produces the subject and body for a template name. Unknown template
// names are an error so a typo in a publisher shows up in the DLQ, not as a
// silently dropped email.
func Render(name string, fields map[string]string) (subject, body string, err error) {
	t, ok := templates[name]
	if !ok {
		return "", "", fmt.Errorf("unknown email template %q", name)
	}
	var sb strings.Builder
	if err := t.body.Execute(&sb, fields); err != nil {
		return "", "", fmt.Errorf("render %s: %w", name, err)
	}
	return t.subject, sb.String(), nil
}
