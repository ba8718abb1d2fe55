// Package refresh decides when the caches are refreshed and makes sure a
// cache is never fetched twice at the same time.
//
// Each cache moves through the states
//
//	Fresh -> Stale -> Refreshing -> Fresh
//
// and falls back to Stale when a refresh fails. A failed refresh never
// touches the existing snapshot.
//
// There are three ways into Refreshing: the startup pass (Initialize), the
// periodic loop (Run), and readers that find a stale cache (EnsureExit,
// EnsureDetailed). All of them go through one singleflight.Group keyed by
// cache name, so concurrent callers join the refresh that is already in
// flight instead of starting their own. A caller whose context ends while
// waiting returns early; the shared fetch keeps running to completion so
// the other waiters still get its result.
package refresh
