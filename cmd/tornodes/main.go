// Package main provides the entry point for the tornodes CLI.
//
// tornodes keeps a local cache of the Tor exit node addresses and of the
// relay summary published by the Tor Project, and serves both over HTTP.
//
// Usage:
//
//	tornodes serve
//	tornodes fetch --json
//
// See --help for all available options.
package main

// main is the entry point for tornodes.
func main() {
	Execute()
}
