// Package coverart discovers, validates, and downloads front cover images
// from the iTunes search API and the Cover Art Archive.
package coverart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"carat/internal/logging"
)

// Doer is the HTTP client surface, injectable for tests.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ErrNoArtFound reports that neither source produced a usable image.
var ErrNoArtFound = errors.New("no cover art found")

// Fetcher resolves cover art for an album.
type Fetcher struct {
	itunesBaseURL string
	caaBaseURL    string
	httpClient    Doer
	logger        *slog.Logger
}

// New constructs a Fetcher. A nil doer gets a default http.Client.
func New(itunesBaseURL, caaBaseURL string, doer Doer, logger *slog.Logger) *Fetcher {
	if doer == nil {
		doer = &http.Client{Timeout: 20 * time.Second}
	}
	return &Fetcher{
		itunesBaseURL: strings.TrimRight(itunesBaseURL, "/"),
		caaBaseURL:    strings.TrimRight(caaBaseURL, "/"),
		httpClient:    doer,
		logger:        logging.NewComponentLogger(logger, "coverart"),
	}
}

// Fetch returns validated image bytes for the album. iTunes is preferred for
// its consistent high-resolution renditions; the Cover Art Archive serves as
// fallback when a release-group ID is known.
func (f *Fetcher) Fetch(ctx context.Context, artist, album, releaseGroupID string) ([]byte, error) {
	if data, err := f.fetchITunes(ctx, artist, album); err == nil {
		return data, nil
	} else {
		f.logger.Debug("itunes lookup failed", logging.Error(err))
	}
	if releaseGroupID != "" {
		if data, err := f.fetchCAA(ctx, releaseGroupID); err == nil {
			return data, nil
		} else {
			f.logger.Debug("cover art archive lookup failed", logging.Error(err))
		}
	}
	return nil, ErrNoArtFound
}

type itunesSearch struct {
	Results []struct {
		ArtistName     string `json:"artistName"`
		CollectionName string `json:"collectionName"`
		ArtworkURL100  string `json:"artworkUrl100"`
	} `json:"results"`
}

func (f *Fetcher) fetchITunes(ctx context.Context, artist, album string) ([]byte, error) {
	q := url.Values{}
	q.Set("term", artist+" "+album)
	q.Set("media", "music")
	q.Set("entity", "album")
	q.Set("limit", "10")

	var search itunesSearch
	if err := f.getJSON(ctx, f.itunesBaseURL+"/search?"+q.Encode(), &search); err != nil {
		return nil, err
	}

	wantArtist := Normalize(artist)
	wantAlbum := Normalize(album)
	for _, result := range search.Results {
		if Normalize(result.ArtistName) != wantArtist {
			continue
		}
		gotAlbum := Normalize(result.CollectionName)
		if gotAlbum != wantAlbum && !strings.HasPrefix(gotAlbum, wantAlbum) {
			continue
		}
		if result.ArtworkURL100 == "" {
			continue
		}
		// The store serves arbitrary renditions; swap the thumbnail size for
		// full resolution.
		full := strings.Replace(result.ArtworkURL100, "100x100", "1200x1200", 1)
		return f.download(ctx, full)
	}
	return nil, ErrNoArtFound
}

type caaIndex struct {
	Images []struct {
		Front      bool              `json:"front"`
		Image      string            `json:"image"`
		Thumbnails map[string]string `json:"thumbnails"`
	} `json:"images"`
}

func (f *Fetcher) fetchCAA(ctx context.Context, releaseGroupID string) ([]byte, error) {
	var index caaIndex
	if err := f.getJSON(ctx, f.caaBaseURL+"/release-group/"+releaseGroupID, &index); err != nil {
		return nil, err
	}
	for _, img := range index.Images {
		if !img.Front {
			continue
		}
		target := img.Thumbnails["1200"]
		if target == "" {
			target = img.Image
		}
		if target == "" {
			continue
		}
		return f.download(ctx, target)
	}
	return nil, ErrNoArtFound
}

func (f *Fetcher) getJSON(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("cover art source: status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// download retrieves and validates an image, rejecting anything that fails
// the cover-shape checks.
func (f *Fetcher) download(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("image download: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, err
	}
	if err := Validate(data); err != nil {
		return nil, err
	}
	return data, nil
}
