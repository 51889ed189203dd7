package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEscapeLike(t *testing.T) {
	cases := map[string]string{
		"printer": "printer",
		"50%":     `50\%`,
		"a_b":     `a\_b`,
		`c:\temp`: `c:\\temp`,
		`100%_\x`: `100\%\_\\x`,
		"":        "",
	}
	for in, want := range cases {
		assert.Equal(t, want, escapeLike(in), in)
	}
}
