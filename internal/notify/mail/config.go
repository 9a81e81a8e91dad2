package mail

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/service/sesv2"

	platformaws "entrygate/internal/platform/aws"
	"entrygate/internal/platform/config"
)

// FromConfig builds the mailer selected by MAIL_PROVIDER. The AWS config is
// only loaded for ses.
func FromConfig(ctx context.Context, cfg config.Mail, awsCfg config.AWS, logger *slog.Logger) (Mailer, error) {
	switch cfg.Provider {
	case config.MailLog, "":
		return NewLogMailer(logger), nil
	case config.MailSES:
		sdk, err := platformaws.Load(ctx, awsCfg)
		if err != nil {
			return nil, err
		}
		return NewSESMailer(sesv2.NewFromConfig(sdk)), nil
	case config.MailSendGrid:
		return NewSendGridMailer(cfg.SendGridAPIKey, cfg.FromName), nil
	case config.MailSMTP:
		return &SMTPMailer{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			Timeout:  cfg.Timeout,
		}, nil
	default:
		return nil, fmt.Errorf("unknown mail provider %q", cfg.Provider)
	}
}
