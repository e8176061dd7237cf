package libc_test

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hazyhaar/heavenos/libc"
)

func cstring(s string) unsafe.Pointer {
	b := append([]byte(s), 0)
	return unsafe.Pointer(&b[0])
}

func goString(p unsafe.Pointer) string {
	n := int(libc.Strlen(p))
	return string(unsafe.Slice((*byte)(p), n))
}

func TestStrlen(t *testing.T) {
	assert.EqualValues(t, 5, libc.Strlen(cstring("hello")))
	assert.EqualValues(t, 0, libc.Strlen(cstring("")))
}

func TestStrcmp(t *testing.T) {
	assert.Zero(t, libc.Strcmp(cstring("abc"), cstring("abc")))
	assert.Less(t, libc.Strcmp(cstring("abc"), cstring("abd")), 0)
	assert.Greater(t, libc.Strcmp(cstring("b"), cstring("a")), 0)
}

func TestStrncmp(t *testing.T) {
	assert.Zero(t, libc.Strncmp(cstring("abcxyz"), cstring("abcqqq"), 3))
	assert.NotZero(t, libc.Strncmp(cstring("abcxyz"), cstring("abcqqq"), 4))
}

func TestStrchrAndStrrchr(t *testing.T) {
	s := cstring("banana")
	first := libc.Strchr(s, 'a')
	require.NotNil(t, first)
	assert.Equal(t, uintptr(1), uintptr(first)-uintptr(s))

	last := libc.Strrchr(s, 'a')
	require.NotNil(t, last)
	assert.Equal(t, uintptr(5), uintptr(last)-uintptr(s))

	assert.Nil(t, libc.Strchr(s, 'z'))
}

func TestStrcpyAndStrcat(t *testing.T) {
	dst := make([]byte, 32)
	libc.Strcpy(unsafe.Pointer(&dst[0]), cstring("hello"))
	assert.Equal(t, "hello", goString(unsafe.Pointer(&dst[0])))

	libc.Strcat(unsafe.Pointer(&dst[0]), cstring(" world"))
	assert.Equal(t, "hello world", goString(unsafe.Pointer(&dst[0])))
}

func TestStrncpyPadsWithNulWhenShorter(t *testing.T) {
	dst := make([]byte, 8)
	for i := range dst {
		dst[i] = 0xFF
	}
	libc.Strncpy(unsafe.Pointer(&dst[0]), cstring("hi"), 8)
	assert.Equal(t, []byte{'h', 'i', 0, 0, 0, 0, 0, 0}, dst)
}

func TestStrncat(t *testing.T) {
	dst := make([]byte, 16)
	libc.Strcpy(unsafe.Pointer(&dst[0]), cstring("ab"))
	libc.Strncat(unsafe.Pointer(&dst[0]), cstring("cdefgh"), 3)
	assert.Equal(t, "abcde", goString(unsafe.Pointer(&dst[0])))
}

func TestStrstr(t *testing.T) {
	hay := cstring("the quick brown fox")
	p := libc.Strstr(hay, cstring("brown"))
	require.NotNil(t, p)
	assert.Equal(t, "brown fox", goString(p))

	assert.Nil(t, libc.Strstr(hay, cstring("slow")))
}

func TestStrpbrkStrspnStrcspn(t *testing.T) {
	s := cstring("abc123xyz")
	p := libc.Strpbrk(s, cstring("0123456789"))
	require.NotNil(t, p)
	assert.Equal(t, "123xyz", goString(p))

	assert.EqualValues(t, 3, libc.Strspn(cstring("aaabbb"), cstring("a")))
	assert.EqualValues(t, 3, libc.Strcspn(cstring("abcxyz"), cstring("xyz")))
}
