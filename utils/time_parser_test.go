package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDuration(t *testing.T) {
	d, err := ParseDuration("2d")
	require.NoError(t, err)
	assert.Equal(t, 48*time.Hour, d)

	d, err = ParseDuration(" 30m ")
	require.NoError(t, err)
	assert.Equal(t, 30*time.Minute, d)

	_, err = ParseDuration("xd")
	assert.Error(t, err)
	_, err = ParseDuration("-5m")
	assert.Error(t, err)
	_, err = ParseDuration("soon")
	assert.Error(t, err)
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "30 minutes", FormatDuration(30*time.Minute))
	assert.Equal(t, "1 hour", FormatDuration(time.Hour))
	assert.Equal(t, "2 days", FormatDuration(48*time.Hour))
	assert.Equal(t, "1m30s", FormatDuration(90*time.Second))
}
