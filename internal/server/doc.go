// Package server exposes the Tor node caches over HTTP.
//
// Routes:
//
//	GET /                          service overview (JSON)
//	GET /tornodes-ip.txt           exit IP list (text, ETag)
//	GET /status                    cache status (JSON)
//	GET /api/nodes                 all relays
//	GET /api/nodes/running         running relays
//	GET /api/nodes/exit            exit relays
//	GET /api/nodes/country/{code}  relays in a country
//	GET /api/stats                 statistics (JSON)
//	GET /api/stats.md              statistics (Markdown)
//	GET /api/feed/rss              RSS feed of the first relays
//	GET /api/refreshes             refresh history
//
// Each route has its own per-client rate limit. Requests over the limit get
// 429 with a JSON body carrying retry_after in seconds.
package server
