// Package channels delivers submission events to the spreadsheet, email and
// SMS integrations. A channel never returns an error or panics on delivery
// problems: every failure is captured in the returned ChannelResult.
package channels

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"unicode/utf8"

	"oikos/internal/domain"
	apperrors "oikos/pkg/errors"
)

// rawBodyLimit caps how much of a remote response body ends up in a result.
const rawBodyLimit = 512

// Channel is one delivery integration.
type Channel interface {
	Name() domain.Channel
	// Configured reports whether the channel has the credentials it needs.
	Configured() bool
	Send(ctx context.Context, ev domain.SubmissionEvent) domain.ChannelResult
}

// Mail is one outgoing email.
type Mail struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// Mailer sends a single email through an authenticated transport.
type Mailer interface {
	Send(ctx context.Context, m Mail) error
}

// Gateway sends a single text message and returns the provider's message ID.
type Gateway interface {
	Send(ctx context.Context, to, body string) (string, error)
}

// failure turns a transport error into a failed result. Errors carrying an
// AppError code keep it; anything unclassified is a network error. A timeout
// is only noted on network errors, never on a remote answer.
func failure(ch domain.Channel, what string, err error) domain.ChannelResult {
	code := apperrors.CodeOf(err)
	if code == apperrors.ErrCodeInternalError {
		code = apperrors.ErrCodeNetwork
	}
	if code == apperrors.ErrCodeNetwork && IsTimeout(err) {
		what += ": timeout"
	}
	return domain.Failed(ch, code, fmt.Sprintf("%s: %v", what, err))
}

// partial is the result for a channel whose staff-side message went out but
// whose customer-side message did not.
func partial(ch domain.Channel, detail string) domain.ChannelResult {
	res := domain.Failed(ch, apperrors.ErrCodePartialDelivery, detail)
	res.OK = true
	return res
}

// IsTimeout reports whether err is a deadline or network timeout.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func truncate(raw string, limit int) string {
	raw = strings.TrimSpace(raw)
	if utf8.RuneCountInString(raw) <= limit {
		return raw
	}
	return string([]rune(raw)[:limit]) + "..."
}
