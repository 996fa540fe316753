package channels

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"oikos/internal/config"
	"oikos/internal/domain"
)

// SMSChannel texts the staff number about each submission and, when enabled,
// texts the submitter an acknowledgment.
type SMSChannel struct {
	gateway Gateway
	cfg     config.SMSConfig
	site    Site
	logger  zerolog.Logger
}

// NewSMSChannel creates the SMS channel. Without gateway credentials or a
// staff number the channel is unconfigured.
func NewSMSChannel(gateway Gateway, cfg config.SMSConfig, site Site, logger zerolog.Logger) *SMSChannel {
	return &SMSChannel{
		gateway: gateway,
		cfg:     cfg,
		site:    site,
		logger:  logger.With().Str("component", "sms").Logger(),
	}
}

func (c *SMSChannel) Name() domain.Channel { return domain.ChannelSMS }

func (c *SMSChannel) Configured() bool { return c.gateway != nil && c.cfg.Enabled() }

// Send texts staff first; the customer acknowledgment is best effort.
func (c *SMSChannel) Send(ctx context.Context, ev domain.SubmissionEvent) domain.ChannelResult {
	if !c.Configured() {
		return domain.Unconfigured(domain.ChannelSMS)
	}

	sid, err := c.gateway.Send(ctx, c.cfg.StaffNumber, StaffMessage(ev))
	if err != nil {
		return failure(domain.ChannelSMS, "staff sms", err)
	}

	if !c.cfg.NotifyCustomer {
		return domain.Succeeded(domain.ChannelSMS, "staff notified ("+sid+")")
	}

	to, err := NormalizePhone(domain.Plain(ev.Phone), c.cfg.DefaultCountryCode)
	if err == nil {
		_, err = c.gateway.Send(ctx, to, CustomerMessage(ev, c.site))
	}
	if err != nil {
		c.logger.Warn().
			Str("event_id", ev.EventID).
			Err(err).
			Msg("customer acknowledgment sms failed")
		return partial(domain.ChannelSMS, fmt.Sprintf("staff notified (%s); customer acknowledgment failed: %v", sid, err))
	}

	return domain.Succeeded(domain.ChannelSMS, "staff notified ("+sid+"); customer acknowledged")
}

// StaffMessage is the text sent to the staff number.
func StaffMessage(ev domain.SubmissionEvent) string {
	var b strings.Builder
	if ev.IsBooking() {
		b.WriteString("NEW BOOKING\n")
		fmt.Fprintf(&b, "Name: %s\n", domain.Plain(ev.ContactName))
		fmt.Fprintf(&b, "Package: %s\n", domain.Plain(ev.Booking.PackageName))
		fmt.Fprintf(&b, "Check-in: %s\n", domain.Plain(ev.Booking.CheckinDate))
		fmt.Fprintf(&b, "Guests: %d\n", ev.Booking.GuestCount)
		fmt.Fprintf(&b, "Phone: %s\n", domain.Plain(ev.Phone))
		fmt.Fprintf(&b, "Email: %s\n", domain.Plain(ev.Email))
		b.WriteString("---\nContact them to confirm!")
		return b.String()
	}

	b.WriteString("NEW INQUIRY\n")
	fmt.Fprintf(&b, "Name: %s\n", domain.Plain(ev.ContactName))
	fmt.Fprintf(&b, "Interested: %s\n", domain.Plain(ev.Inquiry.InterestedIn))
	fmt.Fprintf(&b, "Phone: %s\n", domain.Plain(ev.Phone))
	fmt.Fprintf(&b, "Email: %s\n", domain.Plain(ev.Email))
	b.WriteString("---\nFollow up within 24 hours!")
	return b.String()
}

// CustomerMessage is the acknowledgment texted to the submitter.
func CustomerMessage(ev domain.SubmissionEvent, site Site) string {
	name := domain.Plain(ev.ContactName)
	if ev.IsBooking() {
		return fmt.Sprintf("Booking received!\nHi %s, thank you for your booking request.\nOur team will contact you within 24 hours.\n%s", name, site.Name)
	}
	return fmt.Sprintf("Request received!\nHi %s, thank you for your interest.\nWe'll contact you shortly.\n%s", name, site.Name)
}

var errInvalidPhone = errors.New("phone number cannot be converted to E.164")

// NormalizePhone converts a local or international number to E.164 using
// countryCode (such as "+63") for numbers without one.
func NormalizePhone(raw, countryCode string) (string, error) {
	raw = strings.TrimSpace(raw)
	cc := strings.TrimPrefix(strings.TrimSpace(countryCode), "+")

	var digits strings.Builder
	for i, r := range raw {
		switch {
		case r >= '0' && r <= '9':
			digits.WriteRune(r)
		case r == '+' && i == 0:
		case r == ' ' || r == '-' || r == '(' || r == ')' || r == '.':
		default:
			return "", errInvalidPhone
		}
	}

	d := digits.String()
	switch {
	case strings.HasPrefix(raw, "+"):
	case strings.HasPrefix(d, "00"):
		d = d[2:]
	case strings.HasPrefix(d, "0"):
		d = cc + d[1:]
	case cc != "" && strings.HasPrefix(d, cc) && len(d) > 10:
	default:
		d = cc + d
	}

	if len(d) < 8 || len(d) > 15 {
		return "", errInvalidPhone
	}
	return "+" + d, nil
}
