package notify

import (
	"context"
	"strings"

	"entrygate/internal/notify/mail"
	"entrygate/internal/schedule"
	id "entrygate/pkg/domain"
	dErrors "entrygate/pkg/domain-errors"
	"entrygate/pkg/platform/audit"
)

// Dispatcher sends the message of a fired reminder or draw job. It keeps no
// delivery record, so a job delivered twice sends twice.
type Dispatcher struct {
	sender
	defaultLocale id.Locale
}

func NewDispatcher(mailer mail.Mailer, renderer *Renderer, from string, defaultLocale id.Locale, opts ...Option) *Dispatcher {
	if defaultLocale == "" {
		defaultLocale = id.DefaultLocale
	}
	return &Dispatcher{sender: newSender(mailer, renderer, from, opts), defaultLocale: defaultLocale}
}

// Dispatch validates the payload and sends the templated message.
func (d *Dispatcher) Dispatch(ctx context.Context, p schedule.Payload) error {
	if !p.Template.Valid() {
		return dErrors.New(dErrors.CodeInvalidInput, "invalid template")
	}
	email := strings.TrimSpace(p.Email)
	if email == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "email required")
	}
	locale := d.defaultLocale
	if p.Locale != "" {
		parsed, err := id.ParseLocale(string(p.Locale))
		if err != nil {
			return err
		}
		locale = parsed
	}

	event := audit.Event{
		ContestID: p.ContestID,
		EntryID:   p.EntryID,
		Reason:    string(p.Template),
	}
	if err := d.send(ctx, Template(p.Template), locale, email, p.FirstName); err != nil {
		d.logger.ErrorContext(ctx, "deferred notification failed",
			"contest_id", string(p.ContestID),
			"entry_id", p.EntryID,
			"template", string(p.Template),
			"error", err.Error(),
		)
		event.Action = string(audit.EventNotificationFailed)
		d.emit(ctx, event)
		return dErrors.Wrap(err, dErrors.CodeNotificationSendFailed, "failed to send "+string(p.Template)+" notification")
	}

	d.logger.InfoContext(ctx, "deferred notification sent",
		"contest_id", string(p.ContestID),
		"entry_id", p.EntryID,
		"template", string(p.Template),
		"locale", string(locale),
	)
	event.Action = string(audit.EventNotificationSent)
	d.emit(ctx, event)
	return nil
}
