package harness

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Reporter prints progress and results to the console.
type Reporter struct {
	w    io.Writer
	dump bool
	p    *message.Printer
}

// NewReporter returns a reporter writing to w. With dump set the grid is
// printed for every configuration; otherwise only for failed validations.
func NewReporter(w io.Writer, dump bool) *Reporter {
	return &Reporter{w: w, dump: dump, p: message.NewPrinter(language.English)}
}

// Start announces a configuration.
func (r *Reporter) Start(cfg TestConfiguration) {
	fmt.Fprintf(r.w, "Running: %s\n", cfg)
}

// Result prints the outcome of a configuration.
func (r *Reporter) Result(res Result) {
	if res.Grid != nil && (r.dump || res.Status == StatusError) {
		fmt.Fprintln(r.w, "Received output from compute shader (expected output: all 3's):")
		fmt.Fprint(r.w, FormatGrid(res.Grid))
	}
	if res.Err != nil {
		fmt.Fprintf(r.w, "%s: %v\n", res.Status, res.Err)
		return
	}
	fmt.Fprintln(r.w, res.Status)
}

// Summary prints the totals of a run followed by "Done.".
func (r *Reporter) Summary(s Summary) {
	r.p.Fprintf(r.w, "%d configurations, %d elements checked, %d mismatches (%d succeeded, %d failed, %d aborted)\n",
		len(s.Results), s.Checked(), s.Mismatches(),
		s.Count(StatusSuccess), s.Count(StatusError), s.Count(StatusAborted))
	fmt.Fprintln(r.w, "Done.")
}

// FormatGrid renders words RowLen per line, separated by spaces.
func FormatGrid(words []uint32) string {
	var b strings.Builder
	for i, w := range words {
		if i%RowLen != 0 {
			b.WriteByte(' ')
		}
		b.WriteString(strconv.FormatUint(uint64(w), 10))
		if (i+1)%RowLen == 0 {
			b.WriteByte('\n')
		}
	}
	if len(words)%RowLen != 0 {
		b.WriteByte('\n')
	}
	return b.String()
}
