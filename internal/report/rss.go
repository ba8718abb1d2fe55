package report

import (
	"fmt"
	"io"
	"time"

	"github.com/gorilla/feeds"
	"github.com/nao1215/tornodes/internal/model"
)

// DefaultFeedLimit is the number of relays in the RSS feed.
const DefaultFeedLimit = 20

// DefaultFeedLink is the channel link of the RSS feed.
const DefaultFeedLink = "https://metrics.torproject.org/rs.html"

// fingerprintPrefix is the number of fingerprint characters in item descriptions.
const fingerprintPrefix = 16

// RSSWriter outputs relays as an RSS 2.0 feed.
type RSSWriter struct {
	baseWriter

	// limit caps the number of items; the first relays in order are kept.
	limit int

	// link is the channel and item link.
	link string
}

// RSSWriterOption configures an RSSWriter.
type RSSWriterOption func(*RSSWriter)

// WithFeedLimit sets the maximum number of items.
func WithFeedLimit(n int) RSSWriterOption {
	return func(w *RSSWriter) {
		if n > 0 {
			w.limit = n
		}
	}
}

// WithFeedLink sets the channel link.
func WithFeedLink(link string) RSSWriterOption {
	return func(w *RSSWriter) {
		if link != "" {
			w.link = link
		}
	}
}

// NewRSSWriter creates an RSSWriter that outputs to the given writer.
func NewRSSWriter(output io.Writer, opts ...RSSWriterOption) *RSSWriter {
	w := &RSSWriter{
		baseWriter: newBaseWriter(output),
		limit:      DefaultFeedLimit,
		link:       DefaultFeedLink,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// WriteRelays writes the first relays of the set as feed items.
// lastUpdate becomes the build date of the channel and the date of every item.
func (w *RSSWriter) WriteRelays(relays []model.Relay, lastUpdate *time.Time) error {
	if len(relays) > w.limit {
		relays = relays[:w.limit]
	}

	var updated time.Time
	if lastUpdate != nil {
		updated = lastUpdate.UTC()
	}

	feed := &feeds.Feed{
		Title:       "Tor Nodes Feed",
		Link:        &feeds.Link{Href: w.link},
		Description: "Tor relays from the tornodes cache",
		Updated:     updated,
		Items:       make([]*feeds.Item, 0, len(relays)),
	}
	for _, r := range relays {
		feed.Items = append(feed.Items, &feeds.Item{
			Title:       itemTitle(r),
			Link:        &feeds.Link{Href: w.link},
			Description: itemDescription(r),
			Id:          r.Fingerprint,
			Created:     updated,
		})
	}

	return feed.WriteRss(w.output)
}

func itemTitle(r model.Relay) string {
	title := fmt.Sprintf("%s (%s)", r.Nickname, r.Country)
	if r.IsExit {
		title += " (Exit Node)"
	}
	return title
}

func itemDescription(r model.Relay) string {
	fp := r.Fingerprint
	if len(fp) > fingerprintPrefix {
		fp = fp[:fingerprintPrefix] + "..."
	}
	status := "Offline"
	if r.Running {
		status = "Running"
	}
	return fmt.Sprintf("Tor relay: %s | Bandwidth: %d | Status: %s", fp, r.Bandwidth, status)
}
