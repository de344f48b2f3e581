package sheets

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIDSetRoundTrip(t *testing.T) {
	set := map[int]bool{5: true, 1: true, 12: true}
	assert.Equal(t, "1 5 12", formatIDSet(set))
	assert.Equal(t, set, parseIDSet("1 5 12"))
	assert.Empty(t, parseIDSet(""))
	assert.Equal(t, map[int]bool{3: true}, parseIDSet(" 3  junk "))
}

func TestParseTime(t *testing.T) {
	ts := parseTime("2026-09-01T18:00:00Z")
	assert.Equal(t, time.Date(2026, 9, 1, 18, 0, 0, 0, time.UTC), ts)
	assert.True(t, parseTime("garbage").IsZero())
}

func TestGetOutOfRange(t *testing.T) {
	row := []interface{}{"a", nil, 3}
	assert.Equal(t, "a", get(row, 0))
	assert.Equal(t, "", get(row, 1))
	assert.Equal(t, "3", get(row, 2))
	assert.Equal(t, "", get(row, 5))
}
