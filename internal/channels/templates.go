package channels

import (
	"bytes"
	"fmt"
	"html/template"
	"strconv"
	"strings"

	"oikos/internal/domain"
)

// Role selects who an email is written for.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleCustomer Role = "customer"
)

// Site holds the business details printed in customer-facing messages.
type Site struct {
	Name    string
	Phone   string
	Email   string
	Address string
}

// DefaultSite is the farm's public contact information.
var DefaultSite = Site{
	Name:    "Oikos Orchard & Farm",
	Phone:   "+63 917 777 0851",
	Email:   "oikosorchardandfarm2@gmail.com",
	Address: "Vegetable Highway, Upper Bae, Sibonga, Cebu, Philippines",
}

type mailField struct {
	Label string
	// Value is already HTML-escaped by validation.
	Value template.HTML
}

type mailView struct {
	Role      Role
	Site      Site
	Title     string
	Greeting  template.HTML
	Intro     string
	Fields    []mailField
	Submitted string
}

var mailTemplate = template.Must(template.New("mail").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.Title}}</title>
</head>
<body style="font-family: Arial, sans-serif; color: #333333; line-height: 1.6;">
    <div style="max-width: 600px; margin: 0 auto; background: #f5f5f5; padding: 20px; border-radius: 8px;">
        <div style="background: #27ae60; color: #ffffff; padding: 20px; border-radius: 8px 8px 0 0; text-align: center;">
            <h2 style="margin: 0;">{{.Title}}</h2>
        </div>
        <div style="background: #ffffff; padding: 20px;">
            {{- if eq .Role "customer"}}
            <p>Dear <strong>{{.Greeting}}</strong>,</p>
            <p>{{.Intro}}</p>
            <h3>Your Request Details:</h3>
            <ul>
                {{- range .Fields}}
                <li><strong>{{.Label}}:</strong> {{.Value}}</li>
                {{- end}}
            </ul>
            <p>Our team will reach out to you within <strong>24 hours</strong>.</p>
            <h3>Contact Information:</h3>
            <ul>
                <li><strong>Email:</strong> {{.Site.Email}}</li>
                <li><strong>Phone:</strong> {{.Site.Phone}}</li>
                <li><strong>Address:</strong> {{.Site.Address}}</li>
            </ul>
            <p>Best regards,<br><strong>{{.Site.Name}} Team</strong></p>
            {{- else}}
            {{- range .Fields}}
            <div style="margin: 15px 0; border-bottom: 1px solid #eeeeee; padding-bottom: 10px;">
                <span style="font-weight: bold; color: #27ae60; display: inline-block; width: 150px;">{{.Label}}:</span>
                <span>{{.Value}}</span>
            </div>
            {{- end}}
            {{- end}}
        </div>
        <div style="text-align: center; color: #999999; font-size: 12px; margin-top: 20px;">
            {{- if eq .Role "customer"}}
            <p>&copy; {{.Site.Name}}. All rights reserved.</p>
            {{- else}}
            <p>Submitted {{.Submitted}}. This is an automated notification from the {{.Site.Name}} website.</p>
            {{- end}}
        </div>
    </div>
</body>
</html>
`))

// RenderMail builds the email for one recipient role. Admin mail lists every
// field of the event; customer mail is an acknowledgment with a subset.
func RenderMail(role Role, ev domain.SubmissionEvent, site Site) (Mail, error) {
	view := buildView(role, ev, site)

	var buf bytes.Buffer
	if err := mailTemplate.Execute(&buf, view); err != nil {
		return Mail{}, fmt.Errorf("render %s mail: %w", role, err)
	}

	return Mail{
		Subject: subject(role, ev, site),
		HTML:    buf.String(),
		Text:    renderText(view),
	}, nil
}

func buildView(role Role, ev domain.SubmissionEvent, site Site) mailView {
	view := mailView{
		Role:      role,
		Site:      site,
		Greeting:  template.HTML(ev.ContactName),
		Submitted: ev.Timestamp.Format("January 2, 2006 at 3:04 PM MST"),
	}

	var fields []mailField
	add := func(label, value string) {
		if value != "" {
			fields = append(fields, mailField{Label: label, Value: template.HTML(value)})
		}
	}

	switch {
	case ev.IsBooking() && role == RoleAdmin:
		view.Title = "New Booking Request"
		add("Name", ev.ContactName)
		add("Email", ev.Email)
		add("Phone", ev.Phone)
		add("Package", ev.Booking.PackageName)
		add("Price", ev.Booking.PackagePrice)
		add("Check-in", ev.Booking.CheckinDate)
		add("Guests", strconv.Itoa(ev.Booking.GuestCount))
		add("Special Requests", ev.Booking.SpecialRequests)
		add("Booking ID", ev.EventID)
	case ev.IsBooking():
		view.Title = "Booking Request Received"
		view.Intro = "Thank you for your booking request at " + site.Name + "! We have received it and will confirm your stay shortly."
		add("Package", ev.Booking.PackageName)
		add("Check-in", ev.Booking.CheckinDate)
		add("Guests", strconv.Itoa(ev.Booking.GuestCount))
		add("Special Requests", ev.Booking.SpecialRequests)
	case role == RoleAdmin:
		view.Title = "New Get Started Request"
		add("Name", ev.ContactName)
		add("Email", ev.Email)
		add("Phone", ev.Phone)
		add("Interested In", ev.Inquiry.InterestedIn)
		add("Request ID", ev.EventID)
	default:
		view.Title = "Welcome to " + site.Name + "!"
		view.Intro = "Thank you for your interest in " + site.Name + "! We have received your request and will contact you shortly."
		add("Email", ev.Email)
		add("Phone", ev.Phone)
		add("Interested In", ev.Inquiry.InterestedIn)
	}

	view.Fields = fields
	return view
}

func subject(role Role, ev domain.SubmissionEvent, site Site) string {
	switch {
	case ev.IsBooking() && role == RoleAdmin:
		return fmt.Sprintf("New Booking from %s - %s", domain.Plain(ev.ContactName), site.Name)
	case ev.IsBooking():
		return "Booking Request Received - " + site.Name
	case role == RoleAdmin:
		return "New Get Started Request - " + site.Name
	default:
		return "Thank You for Getting Started - " + site.Name
	}
}

func renderText(view mailView) string {
	var b strings.Builder
	b.WriteString(view.Title + "\n\n")
	if view.Role == RoleCustomer {
		fmt.Fprintf(&b, "Dear %s,\n\n%s\n\n", domain.Plain(string(view.Greeting)), view.Intro)
	}
	for _, f := range view.Fields {
		fmt.Fprintf(&b, "%s: %s\n", f.Label, domain.Plain(string(f.Value)))
	}
	if view.Role == RoleCustomer {
		fmt.Fprintf(&b, "\nOur team will reach out to you within 24 hours.\n\n%s\n%s\n%s\n\nBest regards,\n%s Team\n",
			view.Site.Email, view.Site.Phone, view.Site.Address, view.Site.Name)
	} else {
		fmt.Fprintf(&b, "\nSubmitted: %s\n", view.Submitted)
	}
	return b.String()
}
