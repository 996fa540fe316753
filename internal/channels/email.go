package channels

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"oikos/internal/config"
	"oikos/internal/domain"
	apperrors "oikos/pkg/errors"
)

// EmailChannel notifies staff by email and sends the submitter an
// acknowledgment.
type EmailChannel struct {
	mailer Mailer
	cfg    config.EmailConfig
	site   Site
	logger zerolog.Logger
}

// NewEmailChannel creates the email channel. Without credentials in cfg or
// without a mailer the channel is unconfigured.
func NewEmailChannel(mailer Mailer, cfg config.EmailConfig, site Site, logger zerolog.Logger) *EmailChannel {
	return &EmailChannel{
		mailer: mailer,
		cfg:    cfg,
		site:   site,
		logger: logger.With().Str("component", "email").Logger(),
	}
}

func (c *EmailChannel) Name() domain.Channel { return domain.ChannelEmail }

func (c *EmailChannel) Configured() bool { return c.mailer != nil && c.cfg.Enabled() }

// Send mails the admin notification and the customer acknowledgment. Only the
// admin message decides success; a lost acknowledgment is a partial delivery.
func (c *EmailChannel) Send(ctx context.Context, ev domain.SubmissionEvent) domain.ChannelResult {
	if !c.Configured() {
		return domain.Unconfigured(domain.ChannelEmail)
	}

	adminErr := c.deliver(ctx, RoleAdmin, c.cfg.AdminEmail, ev)
	customerErr := c.deliver(ctx, RoleCustomer, domain.Plain(ev.Email), ev)

	if customerErr != nil {
		c.logger.Warn().
			Str("event_id", ev.EventID).
			Err(customerErr).
			Msg("customer acknowledgment email failed")
	}

	switch {
	case adminErr != nil:
		res := failure(domain.ChannelEmail, "admin email", adminErr)
		if customerErr == nil {
			res.Detail += " (customer acknowledgment sent)"
		}
		return res
	case customerErr != nil:
		return partial(domain.ChannelEmail, fmt.Sprintf("admin notified; customer acknowledgment failed: %v", customerErr))
	default:
		return domain.Succeeded(domain.ChannelEmail, "admin notified; customer acknowledged")
	}
}

func (c *EmailChannel) deliver(ctx context.Context, role Role, to string, ev domain.SubmissionEvent) error {
	m, err := RenderMail(role, ev, c.site)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrCodeInternalError, "render email", err)
	}
	m.To = to
	return c.mailer.Send(ctx, m)
}
