// Package linepump turns a byte stream from a child process into decoded
// text lines.
//
// Lines end at "\n"; one "\r" before it is dropped so CRLF output yields the
// same lines. A bare "\r" stays in the text, so a progress bar that redraws
// itself arrives as one line per newline. Invalid UTF-8 is repaired with
// U+FFFD rather than failing the stream. Every stream ends with exactly one
// terminal event.
package linepump
