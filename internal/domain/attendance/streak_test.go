package attendance

import (
	"fmt"
	"testing"
	"time"

	"github.com/goodsign/monday"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvmn-mentors/mentor-relay/internal/domain/shared"
	"github.com/dvmn-mentors/mentor-relay/pkg/timeutil"
)

func englishFormat() DateFormat {
	return DateFormat{
		Layout:   "2 January 2006",
		Locale:   monday.LocaleEnUS,
		Marker:   "г.",
		Location: timeutil.MoscowTZ,
	}
}

var testNow = time.Date(2024, 3, 12, 15, 0, 0, 0, timeutil.MoscowTZ)

// line builds a timeline line for a block that is age days old.
func line(age int, studied bool) string {
	mark := "-"
	if studied {
		mark = "+"
	}
	return fmt.Sprintf("%s г. %s", testNow.AddDate(0, 0, -age).Format("2 January 2006"), mark)
}

func TestCountRecentStudyDays_StrictWindowBoundary(t *testing.T) {
	marks := []bool{true, true, false, true, false, true, true, true}
	var lines []string
	for age, studied := range marks {
		lines = append(lines, line(age, studied))
	}

	count, err := CountRecentStudyDays(lines, 7, testNow, englishFormat())

	require.NoError(t, err)
	assert.Equal(t, 5, count, "ages 0,1,3,5,6 count; age 7 is excluded")
}

func TestCountRecentStudyDays_AlternatingTenDays(t *testing.T) {
	var lines []string
	for age := 0; age <= 10; age++ {
		lines = append(lines, line(age, age%2 == 0))
	}

	count, err := CountRecentStudyDays(lines, 7, testNow, englishFormat())

	require.NoError(t, err)
	assert.Equal(t, 4, count, "ages 0,2,4,6")
}

func TestCountRecentStudyDays_StopsAtFirstOldBlock(t *testing.T) {
	lines := []string{
		line(1, true),
		line(9, false),
		// Out of order on purpose: never reached once the cutoff is hit.
		line(2, true),
	}

	count, err := CountRecentStudyDays(lines, 7, testNow, englishFormat())

	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestCountRecentStudyDays_ParseErrorIsFatal(t *testing.T) {
	lines := []string{
		line(0, true),
		"yesterday +",
		line(2, true),
	}

	count, err := CountRecentStudyDays(lines, 7, testNow, englishFormat())

	require.Error(t, err)
	assert.True(t, shared.IsParse(err))
	assert.Zero(t, count)
}

func TestCountRecentStudyDays_Empty(t *testing.T) {
	count, err := CountRecentStudyDays(nil, 7, testNow, englishFormat())

	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestParseRecord_IrregularWhitespace(t *testing.T) {
	messy, err := ParseRecord("12   March   2024 г.   +", englishFormat())
	require.NoError(t, err)

	clean, err := ParseRecord("12 March 2024 г. +", englishFormat())
	require.NoError(t, err)

	assert.Equal(t, clean, messy)
	assert.True(t, clean.Studied)
	assert.Equal(t, time.Date(2024, 3, 12, 0, 0, 0, 0, time.UTC), clean.Date)
}

func TestParseRecord_MarkerMismatch(t *testing.T) {
	_, err := ParseRecord("12 March 2024 yr. +", englishFormat())

	require.Error(t, err)
	assert.True(t, shared.IsParse(err))
}

func TestParseRecord_NoStudyMark(t *testing.T) {
	rec, err := ParseRecord(" 5 March 2024 г.\n\t", englishFormat())

	require.NoError(t, err)
	assert.False(t, rec.Studied)
}

func TestNormalizeLine(t *testing.T) {
	assert.Equal(t, "12 March 2024 г. +", NormalizeLine("  12 \t March\n2024   г.  + "))
}

func TestParseLocale(t *testing.T) {
	l, err := ParseLocale("ru_RU")
	require.NoError(t, err)
	assert.Equal(t, monday.LocaleRuRU, l)

	_, err = ParseLocale("xx_XX")
	assert.Error(t, err)
}
