package dates

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWindowKeepBoundaries(t *testing.T) {
	w, err := ParseWindow("2026/01/01", "2026/01/31")
	require.NoError(t, err)

	assert.False(t, w.Keep(Parse("2025-12-31")), "one day before start")
	assert.True(t, w.Keep(Parse("2026-01-01")), "start")
	assert.True(t, w.Keep(Parse("2026-01-15")))
	assert.True(t, w.Keep(Parse("2026-01-31")), "end")
	assert.False(t, w.Keep(Parse("2026-02-01")), "one day after end")
	assert.True(t, w.Keep(Unknown), "unparseable dates are kept")
	assert.True(t, w.Keep(Parse("2026-02-30")), "calendar-invalid dates are kept")
}

func TestWindowKeepPartialDates(t *testing.T) {
	w, err := ParseWindow("2026-01-10", "2026-03-31")
	require.NoError(t, err)

	// Jahr allein zählt als 1. Januar und liegt damit vor dem Fenster
	assert.False(t, w.Keep(Parse("2026")))
	assert.True(t, w.Keep(Parse("2026-02")))
}

func TestParseWindowErrors(t *testing.T) {
	_, err := ParseWindow("2026-02-01", "2026-01-01")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidWindow))
	assert.Contains(t, err.Error(), "after")

	_, err = ParseWindow("yesterday", "2026-01-01")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidWindow))
	assert.Contains(t, err.Error(), "yesterday")

	_, err = ParseWindow("2026-01-01", "2026-02-30")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidWindow))
}

func TestLastDaysAndPubMedBounds(t *testing.T) {
	now := time.Date(2026, 2, 16, 23, 59, 0, 0, time.UTC)
	w := LastDays(now, 30)

	min, max := w.PubMedBounds()
	assert.Equal(t, "2026/01/17", min)
	assert.Equal(t, "2026/02/16", max)
	assert.True(t, w.Keep(Parse("2026-02-16")))
	assert.False(t, w.Keep(Parse("2026-01-16")))
}
