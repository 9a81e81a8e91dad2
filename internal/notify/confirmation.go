package notify

import (
	"context"

	"entrygate/internal/entry/models"
	"entrygate/internal/notify/mail"
	dErrors "entrygate/pkg/domain-errors"
)

// Confirmation sends the "entry received" message right after admission.
type Confirmation struct {
	sender
}

func NewConfirmation(mailer mail.Mailer, renderer *Renderer, from string, opts ...Option) *Confirmation {
	return &Confirmation{sender: newSender(mailer, renderer, from, opts)}
}

// Send delivers the confirmation to the entry's normalized email. A failure
// is returned as notification_send_failed; the entry is unaffected.
func (c *Confirmation) Send(ctx context.Context, e *models.Entry) error {
	if err := c.send(ctx, TemplateConfirmation, e.Locale, e.Email, e.FirstName()); err != nil {
		return dErrors.Wrap(err, dErrors.CodeNotificationSendFailed, "failed to send confirmation")
	}
	return nil
}
