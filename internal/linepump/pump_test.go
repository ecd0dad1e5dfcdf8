package linepump_test

import (
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"cdgrab/internal/linepump"
)

func collect(t *testing.T, r io.Reader) []linepump.Event {
	t.Helper()
	var events []linepump.Event
	for ev := range linepump.Start(r) {
		events = append(events, ev)
	}
	return events
}

func lines(events []linepump.Event) []string {
	var out []string
	for _, ev := range events {
		if !ev.Done {
			out = append(out, ev.Text)
		}
	}
	return out
}

func TestRunEmitsLinesInOrder(t *testing.T) {
	events := collect(t, strings.NewReader("one\ntwo\nthree\n"))
	if got := lines(events); strings.Join(got, "|") != "one|two|three" {
		t.Fatalf("unexpected lines %q", got)
	}
	last := events[len(events)-1]
	if !last.Done || last.Err != nil {
		t.Fatalf("expected clean terminal event, got %+v", last)
	}
}

func TestRunEmitsTrailingPartialLine(t *testing.T) {
	events := collect(t, strings.NewReader("a\nb"))
	if got := lines(events); strings.Join(got, "|") != "a|b" {
		t.Fatalf("unexpected lines %q", got)
	}
}

func TestRunLineTerminators(t *testing.T) {
	cases := map[string]string{
		"lf":             "a\nb\n",
		"crlf":           "a\r\nb\r\n",
		"mixed":          "a\r\nb\n",
		"crlf then text": "a\r\nb",
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			got := lines(collect(t, strings.NewReader(input)))
			if strings.Join(got, "|") != "a|b" {
				t.Fatalf("unexpected lines %q", got)
			}
		})
	}
}

func TestRunCountsNewlinesOnly(t *testing.T) {
	input := "one\rone again\ntwo\n\rthree\n"
	got := lines(collect(t, strings.NewReader(input)))
	if len(got) != 3 {
		t.Fatalf("expected one event per newline, got %q", got)
	}
	if got[0] != "one\rone again" || got[2] != "\rthree" {
		t.Fatalf("carriage returns must stay in the text, got %q", got)
	}
}

func TestRunCRLFSplitAcrossReads(t *testing.T) {
	// One byte per read puts "\r" and "\n" in separate reads.
	got := lines(collect(t, iotest.OneByteReader(strings.NewReader("x\r\ny\r\n"))))
	if strings.Join(got, "|") != "x|y" {
		t.Fatalf("unexpected lines %q", got)
	}
}

func TestRunKeepsEmptyLines(t *testing.T) {
	got := lines(collect(t, strings.NewReader("a\n\nb\n")))
	if len(got) != 3 || got[1] != "" {
		t.Fatalf("unexpected lines %q", got)
	}
}

func TestRunProgressRedraws(t *testing.T) {
	input := "[download]  10.0% of 3.00MiB\r[download]  55.0% of 3.00MiB\r[download] 100% of 3.00MiB\nnext\n"
	got := lines(collect(t, strings.NewReader(input)))
	if len(got) != 2 {
		t.Fatalf("expected redraws to stay on one line, got %q", got)
	}
	if strings.Count(got[0], "\r") != 2 || !strings.HasSuffix(got[0], "100% of 3.00MiB") || got[1] != "next" {
		t.Fatalf("unexpected lines %q", got)
	}
}

func TestRunRepairsInvalidUTF8(t *testing.T) {
	events := collect(t, strings.NewReader("ok\nbad \xff\xfe tail\nafter\n"))
	got := lines(events)
	if len(got) != 3 {
		t.Fatalf("expected stream to continue after bad line, got %q", got)
	}
	if events[0].Lossy || events[2].Lossy {
		t.Fatal("valid lines must not be marked lossy")
	}
	if !events[1].Lossy {
		t.Fatal("expected lossy flag on repaired line")
	}
	if !strings.Contains(got[1], "�") || !strings.HasPrefix(got[1], "bad ") || !strings.HasSuffix(got[1], " tail") {
		t.Fatalf("unexpected repaired text %q", got[1])
	}
}

func TestDecodeReportsFallback(t *testing.T) {
	text, err := linepump.Decode([]byte("caf\xe9"))
	var serr *linepump.StreamError
	if !errors.As(err, &serr) || serr.Kind != linepump.DecodeFallback {
		t.Fatalf("expected DecodeFallback, got %v", err)
	}
	if text != "caf�" {
		t.Fatalf("unexpected text %q", text)
	}
	if text, err := linepump.Decode([]byte("café")); err != nil || text != "café" {
		t.Fatalf("valid input changed: %q %v", text, err)
	}
}

func TestRunReadErrorEndsStream(t *testing.T) {
	boom := errors.New("pipe broke")
	r := io.MultiReader(strings.NewReader("first\n"), iotest.ErrReader(boom))
	events := collect(t, r)

	if got := lines(events); len(got) != 1 || got[0] != "first" {
		t.Fatalf("unexpected lines %q", got)
	}
	last := events[len(events)-1]
	var serr *linepump.StreamError
	if !last.Done || !errors.As(last.Err, &serr) || serr.Kind != linepump.ReadFailed {
		t.Fatalf("expected ReadFailed terminal event, got %+v", last)
	}
	if !errors.Is(last.Err, boom) {
		t.Fatal("expected underlying error to be wrapped")
	}
	terminal := 0
	for _, ev := range events {
		if ev.Done {
			terminal++
		}
	}
	if terminal != 1 {
		t.Fatalf("expected exactly one terminal event, got %d", terminal)
	}
}

func TestRunOverlongLineFails(t *testing.T) {
	input := strings.Repeat("x", linepump.MaxLineBytes+10) + "\n"
	var terminal linepump.Event
	err := linepump.Run(strings.NewReader(input), func(ev linepump.Event) {
		if ev.Done {
			terminal = ev
		}
	})
	var serr *linepump.StreamError
	if !errors.As(err, &serr) || serr.Kind != linepump.ReadFailed {
		t.Fatalf("expected ReadFailed, got %v", err)
	}
	if terminal.Err == nil {
		t.Fatal("expected terminal event to carry the error")
	}
}

func TestRunEmptyInput(t *testing.T) {
	events := collect(t, strings.NewReader(""))
	if len(events) != 1 || !events[0].Done || events[0].Err != nil {
		t.Fatalf("expected single clean terminal event, got %+v", events)
	}
}
