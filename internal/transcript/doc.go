// Package transcript holds the append-only log of tool output and status
// messages for download jobs.
//
// A single goroutine owns the lines. Writers and readers talk to it over a
// channel, so appends from several stream pumps never race and readers always
// receive copies.
package transcript
