package mediagrab

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Kind classifies a failure for propagation decisions and for the user-facing response.
type Kind string

const (
	KindInvalidInput               Kind = "InvalidInput"
	KindMetadataUnavailable        Kind = "MetadataUnavailable"
	KindFormatUnavailable          Kind = "FormatUnavailable"
	KindFileMissingAfterProcessing Kind = "FileMissingAfterProcessing"
	KindRelayUnavailable           Kind = "RelayUnavailable"
	KindFatal                      Kind = "Fatal"
)

// Sentinels for use with errors.Is; any *Error of the same Kind matches.
var (
	ErrInvalidInput               = &Error{Kind: KindInvalidInput}
	ErrMetadataUnavailable        = &Error{Kind: KindMetadataUnavailable}
	ErrFormatUnavailable          = &Error{Kind: KindFormatUnavailable}
	ErrFileMissingAfterProcessing = &Error{Kind: KindFileMissingAfterProcessing}
	ErrRelayUnavailable           = &Error{Kind: KindRelayUnavailable}
	ErrFatal                      = &Error{Kind: KindFatal}
)

type Error struct {
	Kind Kind
	// Op names the step that failed, e.g. "relay lookup".
	Op  string
	Err error
}

func NewError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf is a shortcut for NewError(kind, op, fmt.Errorf(format, args...)).
func Errorf(kind Kind, op string, format string, args ...any) *Error {
	return NewError(kind, op, fmt.Errorf(format, args...))
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(describe(e.Kind))
	if e.Op != "" {
		b.WriteString(" (")
		b.WriteString(e.Op)
		b.WriteString(")")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same Kind, so the package sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Kind == e.Kind && (t.Op == "" || t.Op == e.Op) && t.Err == nil
	}
	return false
}

func describe(kind Kind) string {
	switch kind {
	case KindInvalidInput:
		return "invalid input"
	case KindMetadataUnavailable:
		return "metadata unavailable"
	case KindFormatUnavailable:
		return "format fetch failed"
	case KindFileMissingAfterProcessing:
		return "output file missing"
	case KindRelayUnavailable:
		return "relay fetch failed"
	default:
		return "download failed"
	}
}

// KindOf returns the Kind of the outermost *Error in err's chain, or KindFatal if there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindFatal
}

var (
	ansiEscape   = regexp.MustCompile(`\x1b\[[0-9;?]*[ -/]*[@-~]|\x1b\][^\x07\x1b]*(\x07|\x1b\\)|\x1b[@-Z\\-_]`)
	controlChars = regexp.MustCompile(`[\x00-\x1f\x7f]+`)
)

// Sanitize strips terminal escape sequences and control characters, collapsing the result to a single trimmed line.
func Sanitize(s string) string {
	s = ansiEscape.ReplaceAllString(s, "")
	s = controlChars.ReplaceAllString(s, " ")
	return strings.Join(strings.Fields(s), " ")
}

// UserMessage is the sanitized, user-visible rendering of err.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	if msg := Sanitize(err.Error()); msg != "" {
		return msg
	}
	return describe(KindOf(err))
}
