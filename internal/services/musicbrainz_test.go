package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/desertthunder/lbx/internal/shared"
)

func TestMusicBrainzService(t *testing.T) {
	t.Run("NewMusicBrainzService", func(t *testing.T) {
		t.Run("defaults to public service", func(t *testing.T) {
			svc := NewMusicBrainzService(MusicBrainzOpts{})
			if svc.baseURL != musicBrainzBaseURL {
				t.Errorf("expected baseURL %s, got %s", musicBrainzBaseURL, svc.baseURL)
			}
			if !svc.Shared() {
				t.Error("expected default service to be shared")
			}
			if svc.Name() != "MusicBrainz" {
				t.Errorf("expected name MusicBrainz, got %s", svc.Name())
			}
		})

		t.Run("mirror is unshared", func(t *testing.T) {
			svc := NewMusicBrainzService(MusicBrainzOpts{BaseURL: "http://mb.lan/ws/2/"})
			if svc.Shared() {
				t.Error("expected mirror to be unshared")
			}
			if svc.baseURL != "http://mb.lan/ws/2" {
				t.Errorf("expected trailing slash trimmed, got %s", svc.baseURL)
			}
		})
	})

	t.Run("Recording", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get("fmt") != "json" || r.URL.Query().Get("inc") != "artists" {
				t.Errorf("unexpected query: %s", r.URL.RawQuery)
			}
			if ua := r.Header.Get("User-Agent"); ua != "lbx-test/1.0" {
				t.Errorf("expected User-Agent lbx-test/1.0, got %s", ua)
			}

			switch r.URL.Path {
			case "/recording/rec-1":
				w.Write([]byte(`{
					"id": "rec-1",
					"title": "Windowlicker",
					"artist-credit": [
						{"name": "Aphex Twin", "joinphrase": "", "artist": {"id": "art-1", "name": "Aphex Twin"}},
						{"name": "Other", "artist": {"id": "art-2", "name": "Other"}}
					]
				}`))
			case "/recording/no-credit":
				w.Write([]byte(`{"id": "no-credit", "title": "Orphan", "artist-credit": []}`))
			case "/recording/bad-json":
				w.Write([]byte(`{"id": `))
			default:
				w.WriteHeader(http.StatusNotFound)
			}
		}))
		defer server.Close()

		svc := NewMusicBrainzService(MusicBrainzOpts{BaseURL: server.URL, UserAgent: "lbx-test/1.0"})
		ctx := context.Background()

		t.Run("resolves first artist credit", func(t *testing.T) {
			rec, err := svc.Recording(ctx, "rec-1")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if rec.ArtistID != "art-1" || rec.ArtistName != "Aphex Twin" || rec.Title != "Windowlicker" {
				t.Errorf("unexpected recording: %+v", rec)
			}
		})

		t.Run("missing artist credit", func(t *testing.T) {
			_, err := svc.Recording(ctx, "no-credit")
			if !errors.Is(err, shared.ErrNoArtistCredit) {
				t.Errorf("expected ErrNoArtistCredit, got %v", err)
			}
		})

		t.Run("malformed payload", func(t *testing.T) {
			_, err := svc.Recording(ctx, "bad-json")
			if !errors.Is(err, shared.ErrMalformedResponse) {
				t.Errorf("expected ErrMalformedResponse, got %v", err)
			}
		})

		t.Run("not found", func(t *testing.T) {
			_, err := svc.Recording(ctx, "missing")
			if !errors.Is(err, shared.ErrAPIRequest) {
				t.Errorf("expected ErrAPIRequest, got %v", err)
			}
		})

		t.Run("empty reference", func(t *testing.T) {
			if _, err := svc.Recording(ctx, ""); !errors.Is(err, shared.ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})
	})
}
