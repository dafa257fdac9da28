package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeField(t *testing.T) {
	assert.Equal(t, "Team Rocket", sanitizeField("  Team\tRocket \n"))
	assert.Equal(t, "a b c", sanitizeField("a\x00b\x1fc"))
	assert.Equal(t, "", sanitizeField("  \t \r\n "))
	assert.Equal(t, "уничтожитель", sanitizeField(" уничтожитель "))

	long := make([]byte, maxFieldLength+50)
	for i := range long {
		long[i] = 'x'
	}
	assert.Len(t, sanitizeField(string(long)), maxFieldLength)
}

func TestCleanPhone(t *testing.T) {
	assert.Equal(t, "+15551234567", cleanPhone("+1 (555) 123-4567"))
	assert.Equal(t, "88005553535", cleanPhone("8 800 555-35-35"))
	assert.Equal(t, "", cleanPhone("call me"))
	// Плюс значим только в начале номера.
	assert.Equal(t, "123", cleanPhone("1+2+3"))
}

func TestParseFlag(t *testing.T) {
	for _, v := range []string{"1", "true", "Yes", "Y", "x", "X", "TRUE"} {
		assert.True(t, parseFlag(v), v)
	}
	for _, v := range []string{"", "0", "no", "false", "maybe"} {
		assert.False(t, parseFlag(v), v)
	}
}

func TestMapHeader(t *testing.T) {
	columns := mapHeader([]string{"\uFEFFTeam Name", "ROBOT NAME", "robot_class", ""})

	assert.Equal(t, 0, columns["team_name"])
	assert.Equal(t, 1, columns["robot_name"])
	assert.Equal(t, 2, columns["robot_class"])
	assert.NotContains(t, columns, "")
}
