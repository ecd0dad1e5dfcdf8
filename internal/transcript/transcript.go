package transcript

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"
)

// ErrClosed is returned by operations on a closed transcript.
var ErrClosed = errors.New("transcript closed")

// Stream tags where a line came from.
type Stream string

const (
	StreamStdout Stream = "stdout"
	StreamStderr Stream = "stderr"
	// StreamStatus marks lines written by the orchestrator itself.
	StreamStatus Stream = "status"
)

// Line is one transcript entry. Seq and Time are assigned on append.
type Line struct {
	Seq    uint64    `json:"seq"`
	Time   time.Time `json:"ts"`
	JobID  string    `json:"job_id,omitempty"`
	Phase  string    `json:"phase,omitempty"`
	Stream Stream    `json:"stream"`
	Text   string    `json:"text"`
	Lossy  bool      `json:"lossy,omitempty"`
}

func (l Line) String() string {
	if l.Phase == "" {
		return l.Text
	}
	return fmt.Sprintf("[%s] %s", l.Phase, l.Text)
}

type state struct {
	lines   []Line
	nextSeq uint64
	waiters []waiter
}

type waiter struct {
	since uint64
	limit int
	reply chan []Line
}

// Transcript is the append-only line store.
type Transcript struct {
	ops      chan func(*state)
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once

	// final is written by the owner before done is closed.
	final []Line
}

// New starts the owner goroutine. Call Close to stop it.
func New() *Transcript {
	t := &Transcript{
		ops:  make(chan func(*state)),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	go t.run()
	return t
}

func (t *Transcript) run() {
	st := &state{}
	defer close(t.done)
	for {
		select {
		case op := <-t.ops:
			op(st)
		case <-t.stop:
			for _, w := range st.waiters {
				close(w.reply)
			}
			t.final = st.lines
			return
		}
	}
}

// do hands op to the owner. It reports false once the transcript is closed.
// The ops channel is unbuffered, so a true result means the owner took op.
func (t *Transcript) do(op func(*state)) bool {
	select {
	case t.ops <- op:
		return true
	case <-t.stop:
		return false
	}
}

// Append adds line to the end of the transcript. Lines appended by one
// goroutine keep their order.
func (t *Transcript) Append(line Line) error {
	ok := t.do(func(s *state) {
		s.nextSeq++
		line.Seq = s.nextSeq
		if line.Time.IsZero() {
			line.Time = time.Now().UTC()
		}
		s.lines = append(s.lines, line)
		pending := s.waiters[:0]
		for _, w := range s.waiters {
			if lines := after(s.lines, w.since, w.limit); len(lines) > 0 {
				w.reply <- lines
				continue
			}
			pending = append(pending, w)
		}
		s.waiters = pending
	})
	if !ok {
		return ErrClosed
	}
	return nil
}

// Snapshot returns a copy of every line. After Close it returns the final
// contents.
func (t *Transcript) Snapshot() []Line {
	reply := make(chan []Line, 1)
	if !t.do(func(s *state) { reply <- after(s.lines, 0, 0) }) {
		<-t.done
		return after(t.final, 0, 0)
	}
	return <-reply
}

// Fetch returns up to limit lines with Seq greater than since (limit <= 0
// means all). With wait set it blocks until at least one such line exists,
// the context ends, or the transcript closes. The second result is the Seq to
// pass as since on the next call.
func (t *Transcript) Fetch(ctx context.Context, since uint64, limit int, wait bool) ([]Line, uint64, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	reply := make(chan []Line, 1)
	ok := t.do(func(s *state) {
		lines := after(s.lines, since, limit)
		if len(lines) > 0 || !wait {
			reply <- lines
			return
		}
		s.waiters = append(s.waiters, waiter{since: since, limit: limit, reply: reply})
	})
	if !ok {
		<-t.done
		lines := after(t.final, since, limit)
		if len(lines) == 0 && wait {
			return nil, since, ErrClosed
		}
		return lines, next(lines, since), nil
	}

	select {
	case lines, open := <-reply:
		if !open {
			return nil, since, ErrClosed
		}
		return lines, next(lines, since), nil
	case <-ctx.Done():
		return nil, since, ctx.Err()
	}
}

// Subscribe streams every line with Seq greater than since until ctx ends or
// the transcript closes, then closes the channel.
func (t *Transcript) Subscribe(ctx context.Context, since uint64) <-chan Line {
	out := make(chan Line, 64)
	go func() {
		defer close(out)
		cursor := since
		for {
			lines, nextSeq, err := t.Fetch(ctx, cursor, 0, true)
			for _, line := range lines {
				select {
				case out <- line:
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				return
			}
			cursor = nextSeq
		}
	}()
	return out
}

// Close stops the owner goroutine. Pending waiters are released; later
// appends fail with ErrClosed. Close is safe to call more than once.
func (t *Transcript) Close() {
	t.stopOnce.Do(func() { close(t.stop) })
	<-t.done
}

// WriteTo writes the current contents as plain text, one line per entry.
func (t *Transcript) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for _, line := range t.Snapshot() {
		n, err := fmt.Fprintln(w, line.String())
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func after(lines []Line, since uint64, limit int) []Line {
	start := len(lines)
	for i, line := range lines {
		if line.Seq > since {
			start = i
			break
		}
	}
	end := len(lines)
	if limit > 0 && start+limit < end {
		end = start + limit
	}
	if start >= end {
		return nil
	}
	out := make([]Line, end-start)
	copy(out, lines[start:end])
	return out
}

func next(lines []Line, since uint64) uint64 {
	if len(lines) == 0 {
		return since
	}
	return lines[len(lines)-1].Seq
}
