// Package report renders cache contents for people and programs.
//
// This package contains the following writers:
//   - TextWriter: the plain text IP list served as /tornodes-ip.txt
//   - JSONWriter: JSON payloads for the HTTP API and the CLI
//   - MarkdownWriter: a statistics report with mermaid charts
//   - RSSWriter: an RSS 2.0 feed of relays
//
// Writers only format. They never refresh or read a cache themselves; the
// caller hands them the data and the snapshot metadata to print.
package report
