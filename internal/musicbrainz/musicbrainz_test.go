package musicbrainz

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *Client) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client := New(server.URL, 5, server.Client(), nil)
	return server, client
}

func TestLookupMatchesOfficialReleaseWithTrackCount(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); ua == "" {
			t.Errorf("missing User-Agent header")
		}
		switch r.URL.Path {
		case "/release-group":
			w.Write([]byte(`{"release-groups": [
				{"id": "rg-1", "title": "Night Pass",
				 "artist-credit": [{"name": "The Ensemble"}],
				 "first-release-date": "2019-06-21"}
			]}`))
		case "/release":
			if got := r.URL.Query().Get("release-group"); got != "rg-1" {
				t.Errorf("browsed wrong group %q", got)
			}
			w.Write([]byte(`{"releases": [
				{"status": "Bootleg", "media": [{"tracks": [{"title": "X", "position": 1}]}]},
				{"status": "Official", "media": [{"tracks": [
					{"title": "Opener", "position": 1},
					{"title": "Second Wind", "position": 2}
				]}]}
			]}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})

	release, err := client.Lookup(context.Background(), "night pass", 2)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if release.Title != "Night Pass" || release.Artist != "The Ensemble" || release.Year != "2019" {
		t.Fatalf("unexpected release: %+v", release)
	}
	if len(release.TrackTitles) != 2 || release.TrackTitles[0] != "Opener" {
		t.Fatalf("unexpected tracks: %v", release.TrackTitles)
	}
}

func TestLookupSkipsGroupsWithoutTrackCountMatch(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/release-group":
			w.Write([]byte(`{"release-groups": [
				{"id": "rg-short", "title": "Single"},
				{"id": "rg-full", "title": "Album", "artist-credit": [{"name": "A"}]}
			]}`))
		case "/release":
			if r.URL.Query().Get("release-group") == "rg-short" {
				w.Write([]byte(`{"releases": [{"status": "Official", "media": [{"tracks": [{"title": "Only", "position": 1}]}]}]}`))
				return
			}
			w.Write([]byte(`{"releases": [{"status": "Official", "media": [{"tracks": [
				{"title": "T1", "position": 1}, {"title": "T2", "position": 2}, {"title": "T3", "position": 3}
			]}]}]}`))
		}
	})

	release, err := client.Lookup(context.Background(), "album", 3)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if release.ReleaseGroupID != "rg-full" {
		t.Fatalf("matched wrong group: %+v", release)
	}
}

func TestLookupNoMatch(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/release-group":
			w.Write([]byte(`{"release-groups": [{"id": "rg-1", "title": "X"}]}`))
		case "/release":
			w.Write([]byte(`{"releases": []}`))
		}
	})

	_, err := client.Lookup(context.Background(), "unknown", 12)
	if !errors.Is(err, ErrNoMatch) {
		t.Fatalf("expected ErrNoMatch, got %v", err)
	}
}

func TestLookupMultiDiscConcatenatesMedia(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/release-group":
			w.Write([]byte(`{"release-groups": [{"id": "rg-1", "title": "Double"}]}`))
		case "/release":
			w.Write([]byte(`{"releases": [{"status": "Official", "media": [
				{"tracks": [{"title": "A1", "position": 1}]},
				{"tracks": [{"title": "B1", "position": 1}]}
			]}]}`))
		}
	})

	release, err := client.Lookup(context.Background(), "double", 2)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if len(release.TrackTitles) != 2 || release.TrackTitles[1] != "B1" {
		t.Fatalf("media not concatenated: %v", release.TrackTitles)
	}
}

func TestLookupServerErrorPropagates(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	_, err := client.Lookup(context.Background(), "x", 1)
	if err == nil || errors.Is(err, ErrNoMatch) {
		t.Fatalf("expected transport error, got %v", err)
	}
}
