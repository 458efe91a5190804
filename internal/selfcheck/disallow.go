package selfcheck

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/edudar/system-rules/internal/checker"
	"github.com/edudar/system-rules/pkg/restore"
	"github.com/edudar/system-rules/pkg/stdio"
)

// writeAttempts lists the ways code commonly writes to a stream, with the
// first character each of them produces.
var writeAttempts = []struct {
	name  string
	write func(w io.Writer)
	first string
}{
	{"write_bytes", func(w io.Writer) { _, _ = w.Write([]byte("dummy text")) }, "d"},
	{"write_string", func(w io.Writer) { _, _ = io.WriteString(w, "dummy text") }, "d"},
	{"print_a_character", func(w io.Writer) { fmt.Fprintf(w, "%c", 'x') }, "x"},
	{"print_a_sub_sequence_of_a_text", func(w io.Writer) { fmt.Fprint(w, "dummy text"[2:3]) }, "m"},
	{"print_a_boolean", func(w io.Writer) { fmt.Fprint(w, true) }, "t"},
	{"print_a_float", func(w io.Writer) { fmt.Fprint(w, 1.5) }, "1"},
	{"print_an_int", func(w io.Writer) { fmt.Fprint(w, 1) }, "1"},
	{"print_an_int64", func(w io.Writer) { fmt.Fprint(w, int64(1)) }, "1"},
	{"print_a_struct", func(w io.Writer) { fmt.Fprint(w, struct{}{}) }, "{"},
	{"print_a_string", func(w io.Writer) { fmt.Fprint(w, "dummy") }, "d"},
	{"print_runes", func(w io.Writer) { fmt.Fprint(w, string([]rune{'d', 'u', 'm', 'm', 'y'})) }, "d"},
	{"print_a_multi_byte_character", func(w io.Writer) { fmt.Fprint(w, "ärger") }, "ä"},
	{"printf_a_formatted_text", func(w io.Writer) { fmt.Fprintf(w, "%s, %s", "first dummy", "second dummy") }, "f"},
	{"println_without_arguments", func(w io.Writer) { fmt.Fprintln(w) }, "\n"},
	{"println_a_boolean", func(w io.Writer) { fmt.Fprintln(w, true) }, "t"},
	{"println_a_float", func(w io.Writer) { fmt.Fprintln(w, 1.5) }, "1"},
	{"println_an_int", func(w io.Writer) { fmt.Fprintln(w, 1) }, "1"},
	{"println_a_string", func(w io.Writer) { fmt.Fprintln(w, "dummy") }, "d"},
	{"log_through_a_logger", func(w io.Writer) { log.New(w, "", 0).Print("dummy") }, "d"},
}

// DisallowCases verify stdio.DisallowWrite for stream s.
func DisallowCases(s stdio.Stream) []checker.Case {
	name := func(n string) string { return "disallow/" + s.String() + "/" + n }
	cases := []checker.Case{
		{
			Name:            name("test_is_successful_if_it_does_not_write"),
			ExpectNoFailure: true,
			Test: func(t restore.T) {
				stdio.DisallowWrite(t, s)
			},
		},
	}
	for _, a := range writeAttempts {
		want := "Tried to write '" + a.first + "' although this is not allowed."
		cases = append(cases, checker.Case{
			Name: name("test_fails_if_it_tries_to_" + a.name),
			Test: func(t restore.T) {
				stdio.DisallowWrite(t, s)
				a.write(current(s))
			},
			ExpectFailure: func(t restore.T, f checker.Failure) {
				expectText(t, "failure message", f.Message(), want)
			},
		})
	}
	cases = append(cases, func() checker.Case {
		var original *os.File
		return checker.Case{
			Name:  name("after_the_test_the_stream_is_the_same_as_before"),
			Setup: func(t restore.T) { original = current(s) },
			Test: func(t restore.T) {
				stdio.DisallowWrite(t, s)
			},
			CheckAfterwards: func(t restore.T) {
				if current(s) != original {
					t.Errorf("%s was not restored", s)
				}
			},
		}
	}())
	return cases
}
