package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRequest_ValidRange(t *testing.T) {
	req, err := NewRequest("syn-study", "user-1", "2026-01-01", "2026-01-31")
	require.NoError(t, err)
	assert.Equal(t, "2026-01-01", req.StartDateString())
	assert.Equal(t, "2026-01-31", req.EndDateString())
}

func TestNewRequest_SameDayIsValid(t *testing.T) {
	_, err := NewRequest("syn-study", "user-1", "2026-01-01", "2026-01-01")
	assert.NoError(t, err)
}

func TestNewRequest_RejectsStartAfterEnd(t *testing.T) {
	_, err := NewRequest("syn-study", "user-1", "2026-02-01", "2026-01-01")
	assert.Error(t, err)
}

func TestNewRequest_RejectsMissingFields(t *testing.T) {
	_, err := NewRequest("", "user-1", "2026-01-01", "2026-01-31")
	assert.Error(t, err)

	_, err = NewRequest("syn-study", "", "2026-01-01", "2026-01-31")
	assert.Error(t, err)
}

func TestNewRequest_RejectsMalformedDates(t *testing.T) {
	_, err := NewRequest("syn-study", "user-1", "01/01/2026", "2026-01-31")
	assert.Error(t, err)
}
