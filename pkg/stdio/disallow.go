package stdio

import (
	"os"
	"sync/atomic"
	"unicode/utf8"

	"github.com/edudar/system-rules/pkg/restore"
)

// Disallow fails a test that writes to a stream.
type Disallow struct {
	stream   Stream
	reported atomic.Bool
	done     chan struct{}
}

// DisallowWrite replaces s with a pipe until t finishes. The first bytes
// arriving on the pipe fail the test with a message naming the first
// character written. The failure is reported once.
func DisallowWrite(t restore.T, s Stream) *Disallow {
	t.Helper()
	pr, pw, err := os.Pipe()
	if err != nil {
		t.Fatalf("creating %s pipe: %v", s, err)
	}
	d := &Disallow{stream: s, done: make(chan struct{})}
	t.Cleanup(func() {
		_ = pw.Close()
		<-d.done
		_ = pr.Close()
	})
	restore.Swap(t, s.String(), s.target(), pw)
	go d.watch(t, pr)
	return d
}

func (d *Disallow) Stream() Stream {
	return d.stream
}

func (d *Disallow) watch(t restore.T, r *os.File) {
	defer close(d.done)
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if n > 0 && d.reported.CompareAndSwap(false, true) {
			t.Errorf("Tried to write '%s' although this is not allowed.", firstChar(buf[:n]))
		}
		if err != nil {
			return
		}
	}
}

func firstChar(p []byte) string {
	_, size := utf8.DecodeRune(p)
	if size == 0 {
		return ""
	}
	return string(p[:size])
}
