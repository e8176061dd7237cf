package libc_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hazyhaar/heavenos/libc"
)

func TestCtypeClassifiers(t *testing.T) {
	assert.True(t, libc.Isdigit('5'))
	assert.False(t, libc.Isdigit('a'))
	assert.True(t, libc.Isalpha('Q'))
	assert.True(t, libc.Isalnum('9'))
	assert.True(t, libc.Isspace('\t'))
	assert.True(t, libc.Isupper('Z'))
	assert.True(t, libc.Islower('z'))
	assert.True(t, libc.Isxdigit('f'))
	assert.True(t, libc.Isxdigit('F'))
	assert.False(t, libc.Isxdigit('g'))
	assert.True(t, libc.Isprint('~'))
	assert.False(t, libc.Isprint('\n'))
}

func TestToupperTolower(t *testing.T) {
	assert.Equal(t, int('A'), libc.Toupper('a'))
	assert.Equal(t, int('a'), libc.Tolower('A'))
	assert.Equal(t, int('5'), libc.Toupper('5'))
}
