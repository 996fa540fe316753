// Package validation turns raw form payloads into SubmissionEvents.
package validation

import (
	"fmt"
	"html"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"oikos/internal/domain"
	apperrors "oikos/pkg/errors"
)

var emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

var (
	bookingRequired = []string{
		domain.KeyFullName,
		domain.KeyEmail,
		domain.KeyPhone,
		domain.KeyCheckinDate,
		domain.KeyGuests,
		domain.KeyPackageName,
	}
	inquiryRequired = []string{
		domain.KeyName,
		domain.KeyEmail,
		domain.KeyPhone,
		domain.KeyInterested,
	}
)

// ReservedKeys are set by the server, never by a submitter.
var ReservedKeys = []string{domain.KeyEventID, domain.KeyTimestamp, domain.KeyFormType}

// Option customises a Validator.
type Option func(*Validator)

// WithClock replaces the clock used to stamp new events.
func WithClock(now func() time.Time) Option {
	return func(v *Validator) {
		if now != nil {
			v.now = now
		}
	}
}

// WithIDGenerator replaces the event ID source.
func WithIDGenerator(newID func(kind domain.FormKind) string) Option {
	return func(v *Validator) {
		if newID != nil {
			v.newID = newID
		}
	}
}

// Validator checks raw payloads and builds events from them. It performs no
// I/O; with a fixed clock and ID source its output depends only on input.
type Validator struct {
	now   func() time.Time
	newID func(kind domain.FormKind) string
}

// New creates a Validator stamping events with the wall clock and a random
// UUID.
func New(opts ...Option) *Validator {
	v := &Validator{
		now:   time.Now,
		newID: NewEventID,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(v)
		}
	}
	return v
}

// NewEventID returns a fresh event ID such as "booking_<uuid>".
func NewEventID(kind domain.FormKind) string {
	return string(kind) + "_" + uuid.NewString()
}

// Validate normalizes raw against the rules of the given form. When raw
// already carries an eventId and a timestamp (the event's own record form)
// those are kept rather than regenerated.
func (v *Validator) Validate(kind domain.FormKind, raw map[string]string) (domain.SubmissionEvent, error) {
	var required []string
	switch kind {
	case domain.FormBooking:
		required = bookingRequired
	case domain.FormInquiry:
		required = inquiryRequired
	default:
		return domain.SubmissionEvent{}, apperrors.Invalid(apperrors.ErrCodeInvalidField, domain.KeyFormType,
			fmt.Sprintf("unknown form type %q", kind))
	}

	fields := make(map[string]string, len(raw))
	for k, val := range raw {
		fields[k] = strings.TrimSpace(val)
	}

	if err := checkRequired(fields, required); err != nil {
		return domain.SubmissionEvent{}, err
	}

	if !validEmail(fields[domain.KeyEmail]) {
		return domain.SubmissionEvent{}, apperrors.Invalid(apperrors.ErrCodeInvalidEmail, domain.KeyEmail, "Invalid email address")
	}

	ev := domain.SubmissionEvent{
		Kind:  kind,
		Email: html.EscapeString(fields[domain.KeyEmail]),
		Phone: html.EscapeString(fields[domain.KeyPhone]),
	}

	switch kind {
	case domain.FormBooking:
		guests, err := strconv.Atoi(fields[domain.KeyGuests])
		if err != nil || guests <= 0 {
			return domain.SubmissionEvent{}, apperrors.Invalid(apperrors.ErrCodeInvalidField, domain.KeyGuests,
				"Number of guests must be a positive whole number")
		}
		ev.ContactName = html.EscapeString(fields[domain.KeyFullName])
		ev.Booking = domain.BookingDetails{
			CheckinDate:     html.EscapeString(fields[domain.KeyCheckinDate]),
			GuestCount:      guests,
			PackageName:     html.EscapeString(fields[domain.KeyPackageName]),
			PackagePrice:    html.EscapeString(fields[domain.KeyPackagePrice]),
			SpecialRequests: html.EscapeString(fields[domain.KeySpecialRequests]),
		}
	case domain.FormInquiry:
		ev.ContactName = html.EscapeString(fields[domain.KeyName])
		ev.Inquiry = domain.InquiryDetails{
			InterestedIn: html.EscapeString(fields[domain.KeyInterested]),
		}
	}

	ev.EventID, ev.Timestamp = v.identity(kind, fields)
	return ev, nil
}

func (v *Validator) identity(kind domain.FormKind, fields map[string]string) (string, time.Time) {
	id := fields[domain.KeyEventID]
	ts, err := time.Parse(domain.TimestampLayout, fields[domain.KeyTimestamp])
	if id != "" && err == nil {
		return id, ts.UTC()
	}
	return v.newID(kind), v.now().UTC()
}

// validEmail applies emailRegex and also rejects any Unicode space, which
// RE2's \s does not cover.
func validEmail(email string) bool {
	if strings.IndexFunc(email, unicode.IsSpace) >= 0 {
		return false
	}
	return emailRegex.MatchString(email)
}

func checkRequired(fields map[string]string, required []string) error {
	var missing []string
	for _, key := range required {
		if fields[key] == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return apperrors.Invalid(apperrors.ErrCodeMissingField, missing[0],
		"Please fill all required fields: "+strings.Join(missing, ", "))
}
