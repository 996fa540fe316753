package services

import (
	"net/http"

	"github.com/rs/zerolog"

	"oikos/internal/channels"
	"oikos/internal/config"
)

// NewChannels builds the spreadsheet, email and SMS channels from cfg. All
// three are always returned; those lacking credentials report themselves as
// unconfigured.
func NewChannels(cfg *config.Config, logger zerolog.Logger) []channels.Channel {
	client := &http.Client{}

	return []channels.Channel{
		channels.NewSpreadsheetChannel(cfg.Spreadsheet, logger, channels.WithHTTPClient(client)),
		channels.NewEmailChannel(NewEmailService(cfg.Email), cfg.Email, channels.DefaultSite, logger),
		channels.NewSMSChannel(NewSMSService(cfg.SMS, client), cfg.SMS, channels.DefaultSite, logger),
	}
}
