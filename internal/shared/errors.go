package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing or rejected credentials")

	// API and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrMalformedResponse  = fmt.Errorf("malformed response")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrPlaylistNotFound   = fmt.Errorf("playlist not found")
	ErrNoArtistCredit     = fmt.Errorf("recording has no artist credit")

	// Pipeline outcomes
	ErrNoResolutions = fmt.Errorf("no recordings resolved")
	ErrNoMatches     = fmt.Errorf("no tracks matched")
	ErrNothingAdded  = fmt.Errorf("no tracks added to playlist")
	ErrReconcile     = fmt.Errorf("playlist reconciliation failed")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
