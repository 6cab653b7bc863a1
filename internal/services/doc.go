// Package services defines the remote collaborators of the sync pipeline and implements them over HTTP.
//
// # Interfaces
//
// The pipeline in package tasks depends only on four narrow interfaces:
//   - [Catalog] : recording lookups (MusicBrainz)
//   - [Library] : section listing and free-text track search (Plex)
//   - [Collections] : named playlist management, one item per write (Plex)
//   - [Feed] : recommendation and generated-playlist references (ListenBrainz)
//
// Tests substitute hand-written fakes for each of them.
//
// # MusicBrainz
//
// [MusicBrainzService] looks up recordings with their artist credits. The public
// instance is shared and rate limited; [MusicBrainzService.Shared] tells the
// resolver whether to pace lookups. A self-hosted mirror is not limited.
//
// # Plex
//
// [PlexService] speaks the Plex JSON API. Every request carries the X-Plex-Token
// header. Playlist writes reference items by library URI, built from the server's
// machine identifier, which is fetched once and cached.
//
// # ListenBrainz
//
// [ListenBrainzService] pages through recommendations and reads the weekly and daily
// playlists generated for a user. Requests are authorized with a static token
// through [oauth2.Transport] using the "Token" scheme.
//
// # Error Handling
//
// Services wrap typed errors from the shared package:
//   - [shared.ErrAPIRequest] : transport failure or non-2xx status
//   - [shared.ErrNoArtistCredit] : recording exists but carries no artist
//   - [shared.ErrPlaylistNotFound] : no generated playlist matches the search terms
//   - [shared.ErrMissingArgument] : required identifier was empty
package services
