package db

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestToTextArray(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{name: "nil binds as empty array, not NULL", in: nil, want: []string{}},
		{name: "empty stays empty", in: []string{}, want: []string{}},
		{name: "values pass through", in: []string{"residency", "grant"}, want: []string{"residency", "grant"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := toTextArray(tt.in)

			assert.NotNil(t, got)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSanitizeUTF8(t *testing.T) {
	assert.Equal(t, "hello", SanitizeUTF8("hello"))
	assert.Equal(t, "café", SanitizeUTF8("café"))
	assert.Equal(t, "ab", SanitizeUTF8("a\xffb"))
	assert.Equal(t, "", SanitizeUTF8(""))
}

func TestToDatePtr(t *testing.T) {
	assert.False(t, toDatePtr(nil).Valid)

	zero := time.Time{}
	assert.False(t, toDatePtr(&zero).Valid)

	d := time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)
	converted := toDatePtr(&d)
	assert.True(t, converted.Valid)
	assert.Equal(t, d, converted.Time)
}
