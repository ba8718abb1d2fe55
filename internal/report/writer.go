package report

import (
	"io"
	"time"
)

// TimestampLayout is the layout of human readable times in every format.
const TimestampLayout = "2006-01-02 15:04:05"

// baseWriter provides the output destination shared by all writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// formatUTC renders t in UTC with TimestampLayout.
func formatUTC(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}
