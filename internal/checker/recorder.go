package checker

import (
	"fmt"
	"runtime"
	"strings"
	"sync"
)

// recorder is the restore.T handed to case bodies. It keeps failures to
// itself instead of reporting them to the enclosing test.
type recorder struct {
	name string

	mu       sync.Mutex
	failed   bool
	skipped  bool
	messages []string
	logs     []string
	cleanups []func()
	panicked any
}

func newRecorder(name string) *recorder {
	return &recorder{name: name}
}

func (r *recorder) Helper() {}

func (r *recorder) Name() string { return r.name }

func (r *recorder) Cleanup(f func()) {
	r.mu.Lock()
	r.cleanups = append(r.cleanups, f)
	r.mu.Unlock()
}

func (r *recorder) record(msg string) {
	r.mu.Lock()
	r.failed = true
	r.messages = append(r.messages, msg)
	r.mu.Unlock()
}

func (r *recorder) Error(args ...any) { r.record(strings.TrimSuffix(fmt.Sprintln(args...), "\n")) }

func (r *recorder) Errorf(format string, args ...any) { r.record(fmt.Sprintf(format, args...)) }

func (r *recorder) Fatal(args ...any) {
	r.Error(args...)
	runtime.Goexit()
}

func (r *recorder) Fatalf(format string, args ...any) {
	r.Errorf(format, args...)
	runtime.Goexit()
}

func (r *recorder) Fail() {
	r.mu.Lock()
	r.failed = true
	r.mu.Unlock()
}

func (r *recorder) FailNow() {
	r.Fail()
	runtime.Goexit()
}

func (r *recorder) Failed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.failed
}

func (r *recorder) Log(args ...any) {
	r.mu.Lock()
	r.logs = append(r.logs, strings.TrimSuffix(fmt.Sprintln(args...), "\n"))
	r.mu.Unlock()
}

func (r *recorder) Logf(format string, args ...any) {
	r.mu.Lock()
	r.logs = append(r.logs, fmt.Sprintf(format, args...))
	r.mu.Unlock()
}

func (r *recorder) Skip(args ...any) {
	r.Log(args...)
	r.SkipNow()
}

func (r *recorder) Skipf(format string, args ...any) {
	r.Logf(format, args...)
	r.SkipNow()
}

func (r *recorder) SkipNow() {
	r.mu.Lock()
	r.skipped = true
	r.mu.Unlock()
	runtime.Goexit()
}

func (r *recorder) Skipped() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.skipped
}

func (r *recorder) Messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.messages...)
}

func (r *recorder) Logs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.logs...)
}

// call runs fn on its own goroutine so that FailNow and SkipNow can end it
// with runtime.Goexit. A panic is recorded as a failure.
func (r *recorder) call(fn func()) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer func() {
			if p := recover(); p != nil {
				r.mu.Lock()
				r.panicked = p
				r.mu.Unlock()
				r.record(fmt.Sprintf("panic: %v", p))
			}
		}()
		fn()
	}()
	<-done
}

// run calls fn and then the registered cleanups, last registered first.
// Cleanups registered by cleanups run too.
func (r *recorder) run(fn func(*recorder)) {
	r.call(func() { fn(r) })
	r.runCleanups()
}

func (r *recorder) runCleanups() {
	for {
		r.mu.Lock()
		n := len(r.cleanups)
		if n == 0 {
			r.mu.Unlock()
			return
		}
		f := r.cleanups[n-1]
		r.cleanups = r.cleanups[:n-1]
		r.mu.Unlock()
		r.call(f)
	}
}

func (r *recorder) panicValue() any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.panicked
}
