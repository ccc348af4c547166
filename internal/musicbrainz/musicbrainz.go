// Package musicbrainz looks up album metadata and track titles from the
// MusicBrainz JSON web service.
package musicbrainz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"carat/internal/logging"
)

// userAgent identifies the client per MusicBrainz API etiquette.
const userAgent = "carat/1.0 (https://github.com/carat-audio/carat)"

// Doer is the HTTP client surface, injectable for tests.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Release is the matched album metadata.
type Release struct {
	ReleaseGroupID string
	Title          string
	Artist         string
	Year           string
	TrackTitles    []string
}

// Client queries the MusicBrainz WS/2 endpoints.
type Client struct {
	baseURL          string
	maxReleaseGroups int
	httpClient       Doer
	logger           *slog.Logger
}

// New constructs a Client. A nil doer gets a default http.Client with a
// conservative timeout.
func New(baseURL string, maxReleaseGroups int, doer Doer, logger *slog.Logger) *Client {
	if doer == nil {
		doer = &http.Client{Timeout: 15 * time.Second}
	}
	if maxReleaseGroups <= 0 {
		maxReleaseGroups = 5
	}
	return &Client{
		baseURL:          strings.TrimRight(baseURL, "/"),
		maxReleaseGroups: maxReleaseGroups,
		httpClient:       doer,
		logger:           logging.NewComponentLogger(logger, "musicbrainz"),
	}
}

// ErrNoMatch reports that no release with the right track count was found.
var ErrNoMatch = errors.New("no matching release")

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	u := c.baseURL + path + "?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("musicbrainz %s: status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

type releaseGroupSearch struct {
	ReleaseGroups []struct {
		ID           string `json:"id"`
		Title        string `json:"title"`
		ArtistCredit []struct {
			Name string `json:"name"`
		} `json:"artist-credit"`
		FirstReleaseDate string `json:"first-release-date"`
	} `json:"release-groups"`
}

type releaseBrowse struct {
	Releases []struct {
		Status string `json:"status"`
		Media  []struct {
			Tracks []struct {
				Title    string `json:"title"`
				Position int    `json:"position"`
			} `json:"tracks"`
		} `json:"media"`
	} `json:"releases"`
}

// Lookup searches release groups for the query and returns the first Official
// release whose track count matches trackCount. Candidates are examined in
// search-relevance order, bounded by the configured group limit.
func (c *Client) Lookup(ctx context.Context, query string, trackCount int) (*Release, error) {
	var search releaseGroupSearch
	q := url.Values{}
	q.Set("query", query)
	q.Set("limit", fmt.Sprint(c.maxReleaseGroups))
	q.Set("fmt", "json")
	if err := c.getJSON(ctx, "/release-group", q, &search); err != nil {
		return nil, err
	}

	for _, group := range search.ReleaseGroups {
		release, err := c.matchGroup(ctx, group.ID, trackCount)
		if err != nil {
			if errors.Is(err, ErrNoMatch) {
				continue
			}
			return nil, err
		}
		release.ReleaseGroupID = group.ID
		release.Title = group.Title
		if len(group.ArtistCredit) > 0 {
			release.Artist = group.ArtistCredit[0].Name
		}
		if len(group.FirstReleaseDate) >= 4 {
			release.Year = group.FirstReleaseDate[:4]
		}
		c.logger.Info("matched release group",
			logging.String("group", group.ID),
			logging.String("title", group.Title))
		return release, nil
	}
	return nil, ErrNoMatch
}

// matchGroup browses a release group's releases for an Official one with the
// wanted track count and returns its track titles in position order.
func (c *Client) matchGroup(ctx context.Context, groupID string, trackCount int) (*Release, error) {
	var browse releaseBrowse
	q := url.Values{}
	q.Set("release-group", groupID)
	q.Set("inc", "recordings")
	q.Set("fmt", "json")
	if err := c.getJSON(ctx, "/release", q, &browse); err != nil {
		return nil, err
	}

	for _, rel := range browse.Releases {
		if rel.Status != "Official" {
			continue
		}
		var titles []string
		for _, medium := range rel.Media {
			for _, track := range medium.Tracks {
				titles = append(titles, track.Title)
			}
		}
		if len(titles) != trackCount {
			continue
		}
		return &Release{TrackTitles: titles}, nil
	}
	return nil, ErrNoMatch
}
