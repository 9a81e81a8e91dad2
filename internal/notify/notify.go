// Package notify renders and sends the confirmation message at admission and
// the deferred reminder and draw-day messages when their schedules fire.
package notify

import (
	"context"
	"log/slog"
	"time"

	"entrygate/internal/notify/mail"
	id "entrygate/pkg/domain"
	"entrygate/pkg/platform/audit"
)

// AuditPublisher records delivery outcomes.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

const defaultSendTimeout = 10 * time.Second

// sender holds what Confirmation and Dispatcher share.
type sender struct {
	mailer   mail.Mailer
	renderer *Renderer
	from     string
	timeout  time.Duration
	logger   *slog.Logger
	metrics  *Metrics
	auditor  AuditPublisher
}

type Option func(*sender)

func WithSendTimeout(d time.Duration) Option {
	return func(s *sender) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *sender) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithMetrics(m *Metrics) Option {
	return func(s *sender) { s.metrics = m }
}

func WithAuditPublisher(p AuditPublisher) Option {
	return func(s *sender) { s.auditor = p }
}

func newSender(mailer mail.Mailer, renderer *Renderer, from string, opts []Option) sender {
	s := sender{
		mailer:   mailer,
		renderer: renderer,
		from:     from,
		timeout:  defaultSendTimeout,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// send renders and delivers one message within the send timeout.
func (s *sender) send(ctx context.Context, tmpl Template, locale id.Locale, to, firstName string) error {
	rendered, err := s.renderer.Render(tmpl, locale, firstName)
	if err != nil {
		s.metrics.IncrementFailed(string(tmpl))
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	err = s.mailer.Send(ctx, mail.Message{
		From:    s.from,
		To:      to,
		Subject: rendered.Subject,
		HTML:    rendered.HTML,
		Text:    rendered.Text,
		Tags:    map[string]string{"template": string(tmpl)},
	})
	s.metrics.ObserveSend(string(tmpl), start)
	if err != nil {
		s.metrics.IncrementFailed(string(tmpl))
		return err
	}
	s.metrics.IncrementSent(string(tmpl), string(locale))
	return nil
}

func (s *sender) emit(ctx context.Context, event audit.Event) {
	if s.auditor == nil {
		return
	}
	if err := s.auditor.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event",
			"action", event.Action,
			"entry_id", event.EntryID,
			"error", err.Error(),
		)
	}
}
