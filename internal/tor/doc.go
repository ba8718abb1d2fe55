// Package tor routes the upstream fetches through the Tor network.
//
// Two setups are supported. An operator who already runs a Tor daemon
// points the service at its SOCKS5 port and gets a Client. Without one,
// EmbeddedTor launches a private daemon through tornago and hands out a
// Client bound to its SOCKS port.
//
// Either way the result is an *http.Transport that the source client uses
// as its base transport; retries, timeouts and parsing stay in the source
// package.
package tor
