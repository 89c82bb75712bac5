package session

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	// DefaultMaxEssaySize is 32KB, room for a long essay.
	DefaultMaxEssaySize = 32 * 1024
	// EnvMaxEssaySize overrides the default limit.
	EnvMaxEssaySize = "ESSAYFLOW_MAX_ESSAY_SIZE"
)

var (
	ErrEssayTooLarge = errors.New("essay exceeds maximum allowed size")
	ErrInvalidUTF8   = errors.New("essay contains invalid UTF-8 sequences")
)

// SanitizeEssay enforces the size limit, validates UTF-8 and strips control
// characters other than newline, tab and carriage return.
// The text is otherwise passed through untouched.
func SanitizeEssay(input string) (string, error) {
	limit := maxEssaySize()
	if len(input) > limit {
		// Rejected, not truncated: the backend must score what the user wrote.
		return "", fmt.Errorf("%w: size=%d limit=%d", ErrEssayTooLarge, len(input), limit)
	}
	if !utf8.ValidString(input) {
		return "", ErrInvalidUTF8
	}

	if !strings.ContainsFunc(input, unsafeControl) {
		return input, nil
	}

	var b strings.Builder
	b.Grow(len(input))
	for _, r := range input {
		if !unsafeControl(r) {
			b.WriteRune(r)
		}
	}
	return b.String(), nil
}

func unsafeControl(r rune) bool {
	return unicode.IsControl(r) && r != '\n' && r != '\t' && r != '\r'
}

func maxEssaySize() int {
	if val := os.Getenv(EnvMaxEssaySize); val != "" {
		if size, err := strconv.Atoi(val); err == nil && size > 0 {
			return size
		}
	}
	return DefaultMaxEssaySize
}
