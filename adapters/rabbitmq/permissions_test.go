package rabbitmq

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAddAlternative(t *testing.T) {
	p := addAlternative("", "u1/sub")
	assert.Equal(t, "^u1/sub$", p)

	p = addAlternative(p, "rg.1")
	assert.Equal(t, `^u1/sub$|^rg\.1$`, p)

	assert.Equal(t, p, addAlternative(p, "u1/sub"), "granting twice is a no-op")
	assert.Equal(t, ".*", addAlternative(".*", "anything"), "broader grants are kept as is")
}

func TestRemoveAlternative(t *testing.T) {
	p := addAlternative(addAlternative(addAlternative("", "a"), "b|c"), "d")

	p = removeAlternative(p, "b|c")
	assert.Equal(t, "^a$|^d$", p)

	p = removeAlternative(p, "a")
	assert.Equal(t, "^d$", p)

	assert.Equal(t, "^d$", removeAlternative(p, "missing"))
	assert.Equal(t, "", removeAlternative("^d$", "d"))
	assert.Equal(t, "", removeAlternative("", "d"))
}

func TestSplitAlternatives(t *testing.T) {
	tests := []struct {
		pattern  string
		expected []string
	}{
		{"", nil},
		{"^a$", []string{"^a$"}},
		{`^a$|^b\|c$`, []string{"^a$", `^b\|c$`}},
		{"^(x|y)$|^z$", []string{"^(x|y)$", "^z$"}},
		{"^[|]$|^q$", []string{"^[|]$", "^q$"}},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, splitAlternatives(tt.pattern), tt.pattern)
	}
}

func TestMatchesExactly(t *testing.T) {
	assert.False(t, matchesExactly("", "a"))
	assert.False(t, matchesExactly("(", "a"), "invalid pattern never matches")
	assert.True(t, matchesExactly("^a$|^b$", "b"))
	assert.False(t, matchesExactly("^a$", "ab"))
}
