package dates

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		kind    Kind
		display string
	}{
		{"2024", Year, "2024"},
		{"2024-03", YearMonth, "2024-03"},
		{"2024-03-05", YearMonthDay, "2024-03-05"},
		{"2024/03/05", YearMonthDay, "2024-03-05"},
		{"2024-3-5", YearMonthDay, "2024-03-05"},
		{"2024-Mar", YearMonth, "2024-03"},
		{"2024-03-05T10:11:12Z", YearMonthDay, "2024-03-05"},
		{"2024 Jan-Feb", Year, "2024"},
		{"Winter 1998-1999", Year, "1998"},
		{"  ", Unparseable, ""},
		{"", Unparseable, ""},
		{"n/a", Unparseable, ""},
		{"12345", Unparseable, ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			d := Parse(tt.in)
			assert.Equal(t, tt.kind, d.Kind)
			assert.Equal(t, tt.display, d.String())
		})
	}
}

func TestFromParts(t *testing.T) {
	assert.Equal(t, "2023-11-07", FromParts("2023", "Nov", "7").String())
	assert.Equal(t, "2023-11-07", FromParts("2023", "11", "07").String())
	assert.Equal(t, "2023-09", FromParts("2023", "September", "").String())
	// unbekannter Monatsname fällt auf das Jahr zurück
	assert.Equal(t, "2023", FromParts("2023", "Spring", "3").String())
	assert.Equal(t, Unparseable, FromParts("", "Jan", "1").Kind)
	assert.Equal(t, Unparseable, FromParts("23", "Jan", "1").Kind)
}

func TestOrdinalDefaults(t *testing.T) {
	yearOnly, ok := Parse("2024").Ordinal()
	require.True(t, ok)
	jan1, ok := Parse("2024-01-01").Ordinal()
	require.True(t, ok)
	assert.Equal(t, jan1, yearOnly)

	march, ok := Parse("2024-03").Ordinal()
	require.True(t, ok)
	march1, _ := Parse("2024-03-01").Ordinal()
	assert.Equal(t, march1, march)

	epoch, ok := Parse("1970-01-01").Ordinal()
	require.True(t, ok)
	assert.Equal(t, 0, epoch)

	next, _ := Parse("1970-01-02").Ordinal()
	assert.Equal(t, 1, next)
}

func TestOrdinalInvalid(t *testing.T) {
	for _, in := range []string{"2024-02-31", "2024-13", "2024-00-10", "", "unknown"} {
		_, ok := Parse(in).Ordinal()
		assert.False(t, ok, in)
	}
}

func TestParseMonth(t *testing.T) {
	m, ok := ParseMonth("Jan")
	assert.True(t, ok)
	assert.Equal(t, 1, m)

	m, ok = ParseMonth("dec")
	assert.True(t, ok)
	assert.Equal(t, 12, m)

	m, ok = ParseMonth("08")
	assert.True(t, ok)
	assert.Equal(t, 8, m)

	_, ok = ParseMonth("x")
	assert.False(t, ok)
}

func TestTimeRoundTrip(t *testing.T) {
	now := time.Date(2026, 2, 16, 13, 48, 0, 0, time.UTC)
	got, ok := FromTime(now).Time()
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 2, 16, 0, 0, 0, 0, time.UTC), got)
}
