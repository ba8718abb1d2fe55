// Package source fetches Tor relay data from the two public upstreams.
//
// The exit list (check.torproject.org/exit-addresses) is a line oriented
// text document; the relay summary (onionoo.torproject.org/summary) is a
// JSON document with a top-level "relays" array. Client performs one GET per
// fetch, retries transient failures with exponential backoff through
// go-retryablehttp, and parses the body into model types.
//
// The package never touches the cache store. Callers decide what to do with
// the result; see the refresh package.
package source
