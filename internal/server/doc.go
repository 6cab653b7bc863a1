// Package server runs lbx in daemon mode: a small HTTP server plus two schedules.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation registers method patterns on [http.ServeMux].
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
//
// # Endpoints
//
//	GET /        → Lidarr custom import list ([{"MusicBrainzId": ..., "title": ...}])
//	GET /health  → process status, last pass times and per-playlist outcomes
//
// # Schedules
//
// [Daemon.Run] starts the artist pass immediately and the playlist pass once the first artist pass
// returns, then repeats each at its own interval. A failed pass is logged and the previous
// artist list keeps being served. Cancelling the context stops both schedules and shuts the
// server down gracefully.
package server
