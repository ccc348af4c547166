package coverart

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"Sigur Rós":              "sigur ros",
		"Emerson, Lake & Palmer": "emerson lake and palmer",
		"  Night   Pass! ":       "night pass",
		"ÁLBUM (Deluxe)":         "album deluxe",
	}
	for in, want := range cases {
		if got := Normalize(in); got != want {
			t.Errorf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func encodePNG(t *testing.T, width, height int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, width, height))); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestValidateAcceptsSquareCover(t *testing.T) {
	if err := Validate(encodePNG(t, 1200, 1200)); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidateRejectsSmallImage(t *testing.T) {
	if err := Validate(encodePNG(t, 600, 600)); err == nil {
		t.Fatal("expected rejection of low-resolution image")
	}
}

func TestValidateRejectsNonSquare(t *testing.T) {
	if err := Validate(encodePNG(t, 1920, 1080)); err == nil {
		t.Fatal("expected rejection of widescreen image")
	}
}

func TestValidateRejectsGarbage(t *testing.T) {
	if err := Validate([]byte("not an image")); err == nil {
		t.Fatal("expected decode failure")
	}
}

func TestFetchPrefersITunesMatch(t *testing.T) {
	cover := encodePNG(t, 1200, 1200)
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/search":
			w.Write([]byte(`{"results": [
				{"artistName": "Other Band", "collectionName": "Night Pass", "artworkUrl100": "` + server.URL + `/wrong/100x100bb.jpg"},
				{"artistName": "The Ensemble", "collectionName": "Night Pass", "artworkUrl100": "` + server.URL + `/art/100x100bb.jpg"}
			]}`))
		case "/art/1200x1200bb.jpg":
			w.Write(cover)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	fetcher := New(server.URL, server.URL+"/caa", server.Client(), nil)
	data, err := fetcher.Fetch(context.Background(), "The Ensemble", "Night Pass", "")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(data) != len(cover) {
		t.Fatalf("wrong image bytes: %d vs %d", len(data), len(cover))
	}
}

func TestFetchFallsBackToCoverArtArchive(t *testing.T) {
	cover := encodePNG(t, 1000, 1000)
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/search":
			w.Write([]byte(`{"results": []}`))
		case "/caa/release-group/rg-1":
			w.Write([]byte(`{"images": [
				{"front": false, "image": "` + server.URL + `/back.png"},
				{"front": true, "thumbnails": {"1200": "` + server.URL + `/front.png"}}
			]}`))
		case "/front.png":
			w.Write(cover)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	fetcher := New(server.URL, server.URL+"/caa", server.Client(), nil)
	data, err := fetcher.Fetch(context.Background(), "Nobody", "Nothing", "rg-1")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(data) != len(cover) {
		t.Fatal("fallback image not returned")
	}
}

func TestFetchNoSourcesFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/search" {
			w.Write([]byte(`{"results": []}`))
			return
		}
		http.NotFound(w, r)
	}))
	defer server.Close()

	fetcher := New(server.URL, server.URL+"/caa", server.Client(), nil)
	_, err := fetcher.Fetch(context.Background(), "A", "B", "")
	if !errors.Is(err, ErrNoArtFound) {
		t.Fatalf("expected ErrNoArtFound, got %v", err)
	}
}

func TestFetchRejectsInvalidDownloadedImage(t *testing.T) {
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/search":
			w.Write([]byte(`{"results": [
				{"artistName": "A", "collectionName": "B", "artworkUrl100": "` + server.URL + `/art/100x100bb.jpg"}
			]}`))
		case "/art/1200x1200bb.jpg":
			w.Write([]byte("junk"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	fetcher := New(server.URL, server.URL+"/caa", server.Client(), nil)
	_, err := fetcher.Fetch(context.Background(), "A", "B", "")
	if !errors.Is(err, ErrNoArtFound) {
		t.Fatalf("expected ErrNoArtFound, got %v", err)
	}
}
