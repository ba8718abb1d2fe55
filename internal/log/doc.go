// Package log builds the service's slog logger.
//
// Every logger from New goes through RedactingHandler, which masks
// credentials before they reach the output: values of keys such as
// "authorization" or "password", bearer and basic credentials, and the
// userinfo and secret query parameters of URLs. Upstream URLs, proxy
// addresses and wrapped HTTP errors are logged on every refresh, and any
// of them may carry credentials supplied through the configuration.
//
//	logger := log.New(os.Stderr, log.Options{Level: slog.LevelInfo})
//	logger.Warn("refresh failed", "url", "https://user:pw@example.com/list")
//	// url=https://***REDACTED***@example.com/list
package log
