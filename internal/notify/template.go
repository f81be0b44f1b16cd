// FilePath: internal/notify/template.go
package notify

import (
	"bytes"
	"text/template"
	"time"

	"github.com/mailguard/ingest/internal/models"
)

type message struct {
	Subject string
	Summary string
}

var messages = map[models.EventKind]message{
	models.EventKindDelivery: {"Mail has been delivered", "New mail has been delivered to your mailbox."},
	models.EventKindOpen:     {"Mailbox was opened", "Your mailbox was opened."},
	models.EventKindClose:    {"Mailbox was closed", "Your mailbox was closed."},
	models.EventKindRemoval:  {"Mail was removed", "Mail was removed from your mailbox."},
}

var bodyTemplate = template.Must(template.New("body").Parse(`{{.Summary}}

Device: {{.Serial}}
Time: {{.Time}}
{{if .ImageURL}}
Photo: {{.ImageURL}}
{{end}}
You receive this message because notifications for this event are enabled in your MailGuard settings.
`))

// Render builds the notification for a job
func Render(job models.NotificationJob, to, imageURL string) (*models.Notification, error) {
	msg, ok := messages[job.Kind]
	if !ok {
		msg = message{Subject: "Mailbox activity", Summary: "There was activity at your mailbox."}
	}
	params := map[string]string{
		"Summary":  msg.Summary,
		"Serial":   job.Serial,
		"Kind":     string(job.Kind),
		"Time":     job.OccurredAt.UTC().Format(time.RFC1123),
		"ImageURL": imageURL,
		"EventID":  job.EventID,
	}
	var body bytes.Buffer
	if err := bodyTemplate.Execute(&body, params); err != nil {
		return nil, err
	}
	return &models.Notification{
		To:       to,
		Subject:  msg.Subject,
		Body:     body.String(),
		Params:   params,
		ImageURL: imageURL,
	}, nil
}
