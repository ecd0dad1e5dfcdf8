package linepump

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
)

// MaxLineBytes bounds a single line; longer lines end the stream.
const MaxLineBytes = 1 << 20

const (
	initialBufferBytes = 64 * 1024
	channelDepth       = 64
)

// StreamErrorKind classifies stream problems.
type StreamErrorKind int

const (
	// DecodeFallback marks a line that held invalid UTF-8 and was repaired.
	DecodeFallback StreamErrorKind = iota + 1
	// ReadFailed ends the stream.
	ReadFailed
)

func (k StreamErrorKind) String() string {
	switch k {
	case DecodeFallback:
		return "decode fallback"
	case ReadFailed:
		return "read failed"
	default:
		return "unknown"
	}
}

// StreamError describes a decode or read problem.
type StreamError struct {
	Kind StreamErrorKind
	Err  error
}

func (e *StreamError) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *StreamError) Unwrap() error {
	return e.Err
}

var errInvalidUTF8 = errors.New("invalid utf-8")

// Event is one decoded line or the end of the stream. Done marks the single
// terminal event; Err is set on it when the stream ended with a read error.
type Event struct {
	Text  string
	Lossy bool
	Done  bool
	Err   error
}

// Decode converts raw line bytes to text. Invalid sequences become U+FFFD and
// a DecodeFallback error is returned alongside the repaired text.
func Decode(line []byte) (string, error) {
	if utf8.Valid(line) {
		return string(line), nil
	}
	repaired, err := unicode.UTF8.NewDecoder().Bytes(line)
	if err != nil {
		return string([]rune(string(line))), &StreamError{Kind: DecodeFallback, Err: err}
	}
	return string(repaired), &StreamError{Kind: DecodeFallback, Err: errInvalidUTF8}
}

// Run reads r until EOF or a read error, emitting each line in order followed
// by one terminal event. It returns the terminal error, nil at EOF.
func Run(r io.Reader, emit func(Event)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, initialBufferBytes), MaxLineBytes)
	scanner.Split(bufio.ScanLines)

	for scanner.Scan() {
		text, err := Decode(scanner.Bytes())
		emit(Event{Text: text, Lossy: err != nil})
	}
	if err := scanner.Err(); err != nil {
		serr := &StreamError{Kind: ReadFailed, Err: err}
		emit(Event{Done: true, Err: serr})
		return serr
	}
	emit(Event{Done: true})
	return nil
}

// Start runs Run on its own goroutine. The channel is closed after the
// terminal event.
func Start(r io.Reader) <-chan Event {
	events := make(chan Event, channelDepth)
	go func() {
		defer close(events)
		_ = Run(r, func(ev Event) { events <- ev })
	}()
	return events
}
