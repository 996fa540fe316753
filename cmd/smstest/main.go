// Command smstest sends a sample notification through the configured SMS
// gateway so operators can check Twilio credentials and the staff number.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"oikos/internal/channels"
	"oikos/internal/config"
	"oikos/internal/domain"
	"oikos/internal/logger"
	"oikos/internal/services"
	"oikos/internal/validation"
)

const adminTestMessage = "Test SMS from Oikos Orchard & Farm\n\nIf you received this, SMS notifications are working!"

func main() {
	mode := flag.String("mode", "admin", "message to send: admin, booking or inquiry")
	to := flag.String("to", "", "recipient number (defaults to NOTIFY_PHONE_NUMBER)")
	name := flag.String("name", "Juan Dela Cruz", "sample submitter name")
	email := flag.String("email", "juan@example.com", "sample submitter email")
	phone := flag.String("phone", "09123456789", "sample submitter phone")
	pkg := flag.String("package", "Premium Glamping", "sample booking package")
	checkin := flag.String("checkin", time.Now().AddDate(0, 0, 7).Format(time.DateOnly), "sample check-in date")
	guests := flag.Int("guests", 4, "sample number of guests")
	interested := flag.String("interested", "Farm tours", "sample inquiry interest")
	timeout := flag.Duration("timeout", 15*time.Second, "gateway request timeout")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.App.Env, cfg.Log.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}

	sms := services.NewSMSService(cfg.SMS, nil)
	if !sms.IsEnabled() {
		log.Fatal().Msg("Twilio is not configured: set TWILIO_ACCOUNT_SID, TWILIO_AUTH_TOKEN and TWILIO_PHONE_NUMBER")
	}

	recipient := *to
	if recipient == "" {
		recipient = cfg.SMS.StaffNumber
	}
	if recipient == "" {
		log.Fatal().Msg("no recipient: pass -to or set NOTIFY_PHONE_NUMBER")
	}

	var body string
	switch *mode {
	case "admin":
		body = adminTestMessage
	case "booking":
		ev, err := validation.New().Validate(domain.FormBooking, map[string]string{
			domain.KeyFullName:    *name,
			domain.KeyEmail:       *email,
			domain.KeyPhone:       *phone,
			domain.KeyPackageName: *pkg,
			domain.KeyCheckinDate: *checkin,
			domain.KeyGuests:      strconv.Itoa(*guests),
		})
		if err != nil {
			log.Fatal().Err(err).Msg("invalid sample booking")
		}
		body = channels.StaffMessage(ev)
	case "inquiry":
		ev, err := validation.New().Validate(domain.FormInquiry, map[string]string{
			domain.KeyName:       *name,
			domain.KeyEmail:      *email,
			domain.KeyPhone:      *phone,
			domain.KeyInterested: *interested,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("invalid sample inquiry")
		}
		body = channels.StaffMessage(ev)
	default:
		log.Fatal().Str("mode", *mode).Msg("unknown mode; use admin, booking or inquiry")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	sid, err := sms.Send(ctx, recipient, body)
	if err != nil {
		log.Fatal().Err(err).Str("to", recipient).Msg("failed to send SMS")
	}

	log.Info().Str("sid", sid).Str("to", recipient).Str("mode", *mode).Msg("SMS sent successfully")
}
