package report

import (
	"fmt"
	"io"
	"strings"
	"time"
)

const bannerRule = "################################################################"

// DefaultTextSource is the upstream named in the text list header.
const DefaultTextSource = "https://check.torproject.org/exit-addresses"

// TextWriter writes the plain text exit IP list.
//
// The list is framed by a commented header and a footer line
//
//	# END <n> entries
//
// so that consumers can detect a truncated download. The error form keeps
// the same framing with zero entries.
type TextWriter struct {
	baseWriter

	// source is printed in the header as the origin of the data.
	source string

	// now is used for the error timestamp and for lists never updated.
	now func() time.Time
}

// TextWriterOption configures a TextWriter.
type TextWriterOption func(*TextWriter)

// WithSource sets the upstream URL printed in the header.
func WithSource(source string) TextWriterOption {
	return func(w *TextWriter) {
		if source != "" {
			w.source = source
		}
	}
}

// WithTextClock replaces time.Now.
func WithTextClock(now func() time.Time) TextWriterOption {
	return func(w *TextWriter) {
		if now != nil {
			w.now = now
		}
	}
}

// NewTextWriter creates a TextWriter that outputs to the given writer.
func NewTextWriter(output io.Writer, opts ...TextWriterOption) *TextWriter {
	w := &TextWriter{
		baseWriter: newBaseWriter(output),
		source:     DefaultTextSource,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// WriteIPList writes ips in order between the header and the footer.
// lastUpdate may be nil, in which case the current time is printed.
func (w *TextWriter) WriteIPList(ips []string, lastUpdate *time.Time) (int, error) {
	updated := w.now()
	if lastUpdate != nil {
		updated = *lastUpdate
	}

	var sb strings.Builder
	sb.WriteString(bannerRule + "\n")
	sb.WriteString("# TOR EXIT NODES (IPs only)\n")
	fmt.Fprintf(&sb, "# Last updated: %s UTC\n", formatUTC(updated))
	fmt.Fprintf(&sb, "# Source: %s\n", w.source)
	sb.WriteString(bannerRule + "\n")
	sb.WriteString("#\n")
	sb.WriteString("# DstIP\n")
	for _, ip := range ips {
		sb.WriteString(ip)
		sb.WriteByte('\n')
	}
	writeFooter(&sb, len(ips))

	return io.WriteString(w.output, sb.String())
}

// WriteError writes the error form of the list: the failure message, the
// time of the attempt and a footer with zero entries.
func (w *TextWriter) WriteError(cause error) (int, error) {
	msg := "unknown error"
	if cause != nil {
		msg = singleLine(cause.Error())
	}

	var sb strings.Builder
	sb.WriteString(bannerRule + "\n")
	sb.WriteString("# TOR EXIT NODES (IPs only) - ERROR\n")
	fmt.Fprintf(&sb, "# Error occurred: %s\n", msg)
	fmt.Fprintf(&sb, "# Last attempt: %s UTC\n", formatUTC(w.now()))
	sb.WriteString(bannerRule + "\n")
	sb.WriteString("#\n")
	sb.WriteString("# Failed to load Tor node data\n")
	sb.WriteString("# Try again in a few minutes\n")
	sb.WriteString("#\n")
	writeFooter(&sb, 0)

	return io.WriteString(w.output, sb.String())
}

func writeFooter(sb *strings.Builder, n int) {
	fmt.Fprintf(sb, "# END %d entries\n", n)
}

// singleLine keeps a message inside one comment line.
func singleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
