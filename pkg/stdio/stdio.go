// Package stdio intercepts os.Stdout and os.Stderr for the duration of a
// test. A Rule can mute the stream, keep a log of what was written and hold
// output back unless the test fails. DisallowWrite fails the test as soon as
// anything is written.
package stdio

import (
	"bytes"
	"errors"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/edudar/system-rules/pkg/restore"
)

// Stream selects one of the process-wide output variables.
type Stream int

const (
	Stdout Stream = iota
	Stderr
)

func (s Stream) String() string {
	switch s {
	case Stderr:
		return "stderr"
	default:
		return "stdout"
	}
}

func (s Stream) target() **os.File {
	if s == Stderr {
		return &os.Stderr
	}
	return &os.Stdout
}

// forwarding decides what happens to bytes after they are logged.
type forwarding int

const (
	forward forwarding = iota
	muted
	heldUntilFailure
)

// Option configures a Rule before the test body runs.
type Option func(*Rule)

// WithMute drops everything written to the stream.
func WithMute() Option {
	return func(r *Rule) { r.fwd = muted }
}

// WithMuteForSuccessfulTests holds output back and forwards it only if the
// test fails.
func WithMuteForSuccessfulTests() Option {
	return func(r *Rule) { r.fwd = heldUntilFailure }
}

// WithLog records everything written to the stream.
func WithLog() Option {
	return func(r *Rule) { r.logging = true }
}

// Rule replaces a stream with a capture file for one test.
//
// Writes land in the capture file synchronously. Every method call first
// dispatches the bytes appended since the previous call according to the
// settings that were in effect while they were written.
type Rule struct {
	t        restore.T
	stream   Stream
	original *os.File
	file     *os.File

	mu      sync.Mutex
	offset  int64
	fwd     forwarding
	logging bool
	log     bytes.Buffer
	held    bytes.Buffer
}

// Out intercepts os.Stdout.
func Out(t restore.T, opts ...Option) *Rule {
	t.Helper()
	return Intercept(t, Stdout, opts...)
}

// Err intercepts os.Stderr.
func Err(t restore.T, opts ...Option) *Rule {
	t.Helper()
	return Intercept(t, Stderr, opts...)
}

// Intercept replaces s until t finishes. Afterwards the stream variable holds
// the original *os.File again.
func Intercept(t restore.T, s Stream, opts ...Option) *Rule {
	t.Helper()
	f, err := os.CreateTemp("", "system-rules-"+s.String()+"-*")
	if err != nil {
		t.Fatalf("creating %s capture file: %v", s, err)
	}
	r := &Rule{
		t:        t,
		stream:   s,
		original: *s.target(),
		file:     f,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	// Cleanups run in reverse: the stream is restored first, then the
	// remaining bytes are dispatched and the file is removed.
	t.Cleanup(r.finish)
	restore.Swap(t, s.String(), s.target(), f)
	return r
}

func (r *Rule) Stream() Stream {
	return r.stream
}

// Mute stops forwarding output written from now on.
func (r *Rule) Mute() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.syncLocked()
	r.fwd = muted
}

// MuteForSuccessfulTests holds output written from now on until the test
// ends, and forwards it only if the test failed.
func (r *Rule) MuteForSuccessfulTests() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.syncLocked()
	r.fwd = heldUntilFailure
}

// EnableLog starts recording output written from now on.
func (r *Rule) EnableLog() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.syncLocked()
	r.logging = true
}

// ClearLog discards what has been recorded so far.
func (r *Rule) ClearLog() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.syncLocked()
	r.log.Reset()
}

// Log returns the recorded output. It is empty unless logging is enabled.
func (r *Rule) Log() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.syncLocked()
	return r.log.String()
}

// LogWithNormalizedLineSeparator returns Log with every "\r\n" replaced by "\n".
func (r *Rule) LogWithNormalizedLineSeparator() string {
	return strings.ReplaceAll(r.Log(), "\r\n", "\n")
}

func (r *Rule) syncLocked() {
	info, err := r.file.Stat()
	if err != nil {
		r.t.Errorf("reading %s capture file: %v", r.stream, err)
		return
	}
	size := info.Size()
	if size <= r.offset {
		return
	}
	buf := make([]byte, size-r.offset)
	n, err := r.file.ReadAt(buf, r.offset)
	if err != nil && !errors.Is(err, io.EOF) {
		r.t.Errorf("reading %s capture file: %v", r.stream, err)
		return
	}
	r.offset += int64(n)
	r.dispatch(buf[:n])
}

func (r *Rule) dispatch(p []byte) {
	if len(p) == 0 {
		return
	}
	if r.logging {
		r.log.Write(p)
	}
	switch r.fwd {
	case forward:
		r.forward(p)
	case heldUntilFailure:
		r.held.Write(p)
	}
}

func (r *Rule) forward(p []byte) {
	if r.original == nil {
		return
	}
	if _, err := r.original.Write(p); err != nil {
		r.t.Errorf("forwarding to %s: %v", r.stream, err)
	}
}

func (r *Rule) finish() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.syncLocked()
	if r.held.Len() > 0 && r.t.Failed() {
		r.forward(r.held.Bytes())
	}
	r.held.Reset()

	name := r.file.Name()
	if err := r.file.Close(); err != nil {
		r.t.Errorf("closing %s capture file: %v", r.stream, err)
	}
	if err := os.Remove(name); err != nil {
		r.t.Errorf("removing %s capture file: %v", r.stream, err)
	}
}
