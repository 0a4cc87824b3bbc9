// Package attendance turns the DVMN history timeline into study-day counts.
package attendance

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goodsign/monday"

	"github.com/dvmn-mentors/mentor-relay/internal/domain/shared"
	"github.com/dvmn-mentors/mentor-relay/pkg/timeutil"
)

// StudiedMarker flags a timeline day with study activity.
const StudiedMarker = "+"

// dateTokens is the number of leading tokens holding the date: day, month
// name, year and the locale marker.
const dateTokens = 4

// TimelineSource provides the raw timeline lines of a student, newest first.
type TimelineSource interface {
	FetchTimeline(ctx context.Context, username string) ([]string, error)
}

// ══════════════════════════════════════════════════════════════════════════════
// DATE FORMAT
// ══════════════════════════════════════════════════════════════════════════════

// DateFormat describes how timeline dates are written.
type DateFormat struct {
	// Layout is a Go time layout for "day month year", e.g. "2 January 2006".
	Layout string

	// Locale selects the month names, e.g. monday.LocaleRuRU.
	Locale monday.Locale

	// Marker is the token expected after the year, e.g. "г.". Empty skips the check.
	Marker string

	// Location defines "today" for age computation.
	Location *time.Location
}

// DefaultDateFormat matches the Russian DVMN history page.
func DefaultDateFormat() DateFormat {
	return DateFormat{
		Layout:   "2 January 2006",
		Locale:   monday.LocaleRuRU,
		Marker:   "г.",
		Location: timeutil.MoscowTZ,
	}
}

// ParseLocale validates a locale name such as "ru_RU".
func ParseLocale(name string) (monday.Locale, error) {
	for _, l := range monday.ListLocales() {
		if string(l) == name {
			return l, nil
		}
	}
	return "", fmt.Errorf("unsupported locale %q", name)
}

// ══════════════════════════════════════════════════════════════════════════════
// RECORD
// ══════════════════════════════════════════════════════════════════════════════

// Record is one parsed timeline block.
type Record struct {
	Date    time.Time
	Studied bool
}

// NormalizeLine collapses whitespace runs to a single space and trims the ends.
func NormalizeLine(line string) string {
	return strings.Join(strings.Fields(line), " ")
}

// ParseRecord parses a single timeline line.
func ParseRecord(line string, format DateFormat) (Record, error) {
	tokens := strings.Fields(line)
	if len(tokens) < dateTokens {
		return Record{}, shared.NewParseError("attendance", "ParseRecord",
			fmt.Sprintf("expected at least %d tokens in %q", dateTokens, NormalizeLine(line)), nil)
	}

	if format.Marker != "" && tokens[dateTokens-1] != format.Marker {
		return Record{}, shared.NewParseError("attendance", "ParseRecord",
			fmt.Sprintf("expected %q after the year in %q", format.Marker, NormalizeLine(line)), nil)
	}

	value := strings.Join(tokens[:dateTokens-1], " ")
	date, err := monday.Parse(format.Layout, value, format.Locale)
	if err != nil {
		return Record{}, shared.NewParseError("attendance", "ParseRecord",
			fmt.Sprintf("cannot parse date %q", value), err)
	}

	return Record{
		Date:    date,
		Studied: strings.Contains(tokens[len(tokens)-1], StudiedMarker),
	}, nil
}
