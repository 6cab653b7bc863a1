// Package tasks turns ListenBrainz recording references into a reconciled Plex playlist with real-time progress reporting.
//
// # Stages
//
// A pass is strictly staged; no stage starts before the previous one finishes:
//
//  1. [Resolver.Resolve] : recording MBID → artist and title via MusicBrainz
//     - [SelectStrategy] picks one [ResolveStrategy] per batch
//     - Small batches (≤5) are resolved one at a time
//     - The public service is called sequentially behind a [RateLimiter] (one request per 1.1s)
//     - A private mirror is called through a bounded pool (at most 10 in flight)
//     - Failed lookups become null resolutions; the batch never aborts
//
//  2. [Matcher.Match] : artist and title → Plex track
//     - Searches every music section with each permutation from [Queries]
//     - [Score] rates candidates on a 0-250 scale; at least 50 is required
//
//  3. [Reconciler.Apply] : matched tracks → playlist
//     - [Decide] returns skip, delta (set similarity ≥ 0.8) or rebuild
//     - Playlists are created with one seed track and grown one call at a time
//
// # Progress Reporting
//
// # All operations use non-blocking channels for progress updates
//
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data for advanced UI rendering.
// Updates use select with default to prevent blocking.
//
// # Implementation
//
// [Engine] implements [Pipeline] with dependencies on:
//   - [services.Catalog] : MusicBrainz lookups
//   - [services.Library] and [services.Collections] : Plex search and playlists
//   - [services.Feed] : optional ListenBrainz source of references
package tasks
