package wizard

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ValidationError marks malformed wizard input. It is always recovered
// inside the wizard by re-prompting the current step and never surfaces
// to the caller as a failure.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string {
	return e.msg
}

func invalidf(format string, args ...interface{}) error {
	return &ValidationError{msg: fmt.Sprintf(format, args...)}
}

// maxAmount caps a single request at one billion units of currency
var maxAmount = decimal.NewFromInt(1_000_000_000)

var unsafeChars = regexp.MustCompile("[<>\"'`]")

// ParseAmount validates an amount entry. Comma is accepted as the
// decimal separator.
func ParseAmount(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(strings.ReplaceAll(raw, ",", "."))

	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, invalidf("invalid amount format, use digits with an optional decimal point")
	}
	if amount.Sign() <= 0 {
		return decimal.Zero, invalidf("amount must be greater than zero")
	}
	if amount.GreaterThan(maxAmount) {
		return decimal.Zero, invalidf("amount is too large")
	}
	return amount, nil
}

// periodLayouts are the accepted date spellings, dotted and ISO
var periodLayouts = []string{"02.01.2006", "2006-01-02"}

// ParsePeriod validates a service period: either a single date or a
// start and end date separated by ".." (or "-" between dotted dates).
// A single date yields an equal start and end.
func ParsePeriod(raw string) (start, end time.Time, err error) {
	raw = strings.TrimSpace(raw)

	var startRaw, endRaw string
	switch {
	case strings.Contains(raw, ".."):
		parts := strings.SplitN(raw, "..", 2)
		startRaw, endRaw = parts[0], parts[1]
	case strings.Count(raw, "-") == 1 && strings.Contains(raw, "."):
		parts := strings.SplitN(raw, "-", 2)
		startRaw, endRaw = parts[0], parts[1]
	default:
		startRaw, endRaw = raw, raw
	}

	start, err = parseDate(startRaw)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err = parseDate(endRaw)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}

	if start.After(end) {
		return time.Time{}, time.Time{}, invalidf("period start must not be after its end")
	}
	return start, end, nil
}

func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range periodLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, invalidf("invalid date %q, use DD.MM.YYYY or YYYY-MM-DD", raw)
}

// ValidateNote validates and sanitizes a free-text note
func ValidateNote(raw string) (string, error) {
	note := strings.TrimSpace(raw)
	if len(note) < 2 || len(note) > 1000 {
		return "", invalidf("note must be between 2 and 1000 characters")
	}
	return unsafeChars.ReplaceAllString(note, ""), nil
}

// ValidateComment validates and sanitizes a request comment
func ValidateComment(raw string) (string, error) {
	comment := strings.TrimSpace(raw)
	if len(comment) < 1 || len(comment) > 500 {
		return "", invalidf("comment must be between 1 and 500 characters")
	}
	return unsafeChars.ReplaceAllString(comment, ""), nil
}
