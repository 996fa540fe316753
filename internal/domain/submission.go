package domain

import (
	"html"
	"strconv"
	"time"
)

// FormKind identifies which website form produced a submission.
type FormKind string

const (
	FormBooking FormKind = "booking"
	FormInquiry FormKind = "inquiry"
)

// Record keys shared by both forms.
const (
	KeyEventID   = "eventId"
	KeyFormType  = "formType"
	KeyTimestamp = "timestamp"
	KeyEmail     = "email"
	KeyPhone     = "phone"
)

// Booking form keys.
const (
	KeyFullName        = "fullName"
	KeyCheckinDate     = "checkinDate"
	KeyGuests          = "guests"
	KeyPackageName     = "packageName"
	KeyPackagePrice    = "packagePrice"
	KeySpecialRequests = "specialRequests"
)

// Inquiry ("get started") form keys.
const (
	KeyName       = "name"
	KeyInterested = "interested"
)

// TimestampLayout is the layout used for the timestamp in flat records.
const TimestampLayout = time.RFC3339Nano

// BookingDetails holds the booking-only fields. Empty optional strings mean
// the submitter left them blank.
type BookingDetails struct {
	CheckinDate     string `json:"checkinDate"`
	GuestCount      int    `json:"guests"`
	PackageName     string `json:"packageName"`
	PackagePrice    string `json:"packagePrice,omitempty"`
	SpecialRequests string `json:"specialRequests,omitempty"`
}

// InquiryDetails holds the get-started-only fields.
type InquiryDetails struct {
	InterestedIn string `json:"interested"`
}

// SubmissionEvent is one validated form submission. It is a value type and is
// handed to every channel by value; string fields hold trimmed, HTML-escaped
// text.
type SubmissionEvent struct {
	Kind        FormKind       `json:"formType"`
	EventID     string         `json:"eventId"`
	Timestamp   time.Time      `json:"timestamp"`
	ContactName string         `json:"contactName"`
	Email       string         `json:"email"`
	Phone       string         `json:"phone"`
	Booking     BookingDetails `json:"booking,omitzero"`
	Inquiry     InquiryDetails `json:"inquiry,omitzero"`
}

// IsBooking reports whether the event came from the booking form.
func (e SubmissionEvent) IsBooking() bool {
	return e.Kind == FormBooking
}

// Record returns the flat key/value form of the event using the website's
// field names. Values are the decoded text the submitter typed, so the record
// suits plain-text destinations, and validating it yields the same event
// again.
func (e SubmissionEvent) Record() map[string]string {
	rec := map[string]string{
		KeyEventID:   e.EventID,
		KeyFormType:  string(e.Kind),
		KeyTimestamp: e.Timestamp.UTC().Format(TimestampLayout),
		KeyEmail:     Plain(e.Email),
		KeyPhone:     Plain(e.Phone),
	}

	switch e.Kind {
	case FormBooking:
		rec[KeyFullName] = Plain(e.ContactName)
		rec[KeyCheckinDate] = Plain(e.Booking.CheckinDate)
		rec[KeyGuests] = strconv.Itoa(e.Booking.GuestCount)
		rec[KeyPackageName] = Plain(e.Booking.PackageName)
		rec[KeyPackagePrice] = Plain(e.Booking.PackagePrice)
		rec[KeySpecialRequests] = Plain(e.Booking.SpecialRequests)
	case FormInquiry:
		rec[KeyName] = Plain(e.ContactName)
		rec[KeyInterested] = Plain(e.Inquiry.InterestedIn)
	}

	return rec
}

// Plain decodes a stored (escaped) field value for plain-text use.
func Plain(s string) string {
	return html.UnescapeString(s)
}
