// package server contains the router, middleware & handlers for the lbx daemon
package server

import (
	"context"
	"net/http"

	"github.com/desertthunder/lbx/internal/shared"
	"github.com/desertthunder/lbx/internal/tasks"
)

// Middleware wraps an http.Handler and returns a new http.Handler with additional behavior.
type Middleware func(http.Handler) http.Handler

// Handler is an [http.Handler] that knows the path patterns it serves.
type Handler interface {
	http.Handler      // ServeHTTP handles the HTTP request and writes the response
	Routes() []string // Routes returns the path patterns this handler serves
}

// Router defines the interface for HTTP routing and middleware management.
type Router interface {
	Use(middleware ...Middleware)                     // Use adds middleware to the router's middleware stack
	Handle(method, path string, handler http.Handler) // Handle registers a handler for the specified method and path
	Handler(handler Handler)                          // Handler registers a custom Handler implementation
	ServeHTTP(w http.ResponseWriter, r *http.Request) // ServeHTTP implements http.Handler for the entire router
}

// Worker runs the scheduled passes of the daemon. [tasks.Engine] implements it.
type Worker interface {
	ArtistList(ctx context.Context, progress chan<- tasks.ProgressUpdate) ([]tasks.Artist, error)
	SyncAll(ctx context.Context, playlists []shared.PlaylistConfig, progress chan<- tasks.ProgressUpdate) ([]*tasks.RunResult, error)
}
