package libc

// Classifiers mirror <ctype.h> and take an int the way C's do (a byte
// value or EOF); only the ASCII range is classified, matching the "C"
// locale the embedded engine is built against.

func Isdigit(c int) bool  { return c >= '0' && c <= '9' }
func Isalpha(c int) bool  { return Isupper(c) || Islower(c) }
func Isalnum(c int) bool  { return Isalpha(c) || Isdigit(c) }
func Isspace(c int) bool {
	switch c {
	case ' ', '\t', '\n', '\v', '\f', '\r':
		return true
	}
	return false
}
func Isupper(c int) bool  { return c >= 'A' && c <= 'Z' }
func Islower(c int) bool  { return c >= 'a' && c <= 'z' }
func Isxdigit(c int) bool { return Isdigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F') }
func Isprint(c int) bool  { return c >= 0x20 && c < 0x7f }
func Ispunct(c int) bool  { return Isprint(c) && c != ' ' && !Isalnum(c) }

func Toupper(c int) int {
	if Islower(c) {
		return c - 'a' + 'A'
	}
	return c
}

func Tolower(c int) int {
	if Isupper(c) {
		return c - 'A' + 'a'
	}
	return c
}
