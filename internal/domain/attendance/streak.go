package attendance

import (
	"time"

	"github.com/dvmn-mentors/mentor-relay/pkg/timeutil"
)

// DefaultWindowDays is the look-back window used when the caller gives none.
const DefaultWindowDays = 7

// CountRecentStudyDays counts studied days among lines (newest first) whose
// age is below windowDays. Processing stops at the first line at or beyond
// the window. A line that does not parse fails the whole count.
func CountRecentStudyDays(lines []string, windowDays int, now time.Time, format DateFormat) (int, error) {
	count := 0
	for _, line := range lines {
		rec, err := ParseRecord(line, format)
		if err != nil {
			return 0, err
		}

		if timeutil.DaysSince(rec.Date, now, format.Location) >= windowDays {
			break
		}

		if rec.Studied {
			count++
		}
	}
	return count, nil
}
