// Package musicbrainz is a minimal client for the MusicBrainz WS/2 JSON web
// service, covering the three calls the catalog needs: release-group text
// search and per-entity genre lookups.
//
// MusicBrainz requires a descriptive User-Agent and allows at most one request
// per second for anonymous clients; the client enforces both.
package musicbrainz

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"recordsrecord/catalogservice/internal/metrics"
)

const (
	defaultEndpoint = "https://musicbrainz.org/ws/2"
	defaultRateRPS  = 1
	maxBodyBytes    = 4 << 20
)

type Client struct {
	endpoint  string
	userAgent string
	http      *http.Client
	limiter   *rate.Limiter
}

type Config struct {
	Endpoint  string
	UserAgent string
	Client    *http.Client
	// RateRPS caps outbound requests per second. Defaults to 1 per the
	// MusicBrainz usage policy.
	RateRPS float64
}

// ReleaseGroup is a raw catalog record as returned by the search endpoint.
type ReleaseGroup struct {
	ID               string         `json:"id"`
	Title            string         `json:"title"`
	FirstReleaseDate string         `json:"first-release-date"`
	ArtistCredit     []ArtistCredit `json:"artist-credit"`
}

type ArtistCredit struct {
	Artist Artist `json:"artist"`
}

type Artist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SearchResult is one page of release groups plus the service-reported total
// for the query.
type SearchResult struct {
	Count         int            `json:"count"`
	ReleaseGroups []ReleaseGroup `json:"release-groups"`
}

type genreResponse struct {
	Genres []struct {
		Name string `json:"name"`
	} `json:"genres"`
}

func NewClient(cfg Config) *Client {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	httpClient := cfg.Client
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	rps := cfg.RateRPS
	if rps <= 0 {
		rps = defaultRateRPS
	}
	return &Client{
		endpoint:  strings.TrimRight(endpoint, "/"),
		userAgent: strings.TrimSpace(cfg.UserAgent),
		http:      httpClient,
		limiter:   rate.NewLimiter(rate.Limit(rps), 1),
	}
}

// SearchReleaseGroups runs a paged free-form text search over release groups.
func (c *Client) SearchReleaseGroups(ctx context.Context, query string, limit, offset int) (SearchResult, error) {
	params := url.Values{
		"query":  {query},
		"fmt":    {"json"},
		"limit":  {strconv.Itoa(limit)},
		"offset": {strconv.Itoa(offset)},
	}

	var result SearchResult
	if err := c.getJSON(ctx, "search", "/release-group/?"+params.Encode(), &result); err != nil {
		return SearchResult{}, err
	}
	return result, nil
}

// ReleaseGroupGenres returns the genre tag names attached to a release group,
// in service order.
func (c *Client) ReleaseGroupGenres(ctx context.Context, id string) ([]string, error) {
	return c.entityGenres(ctx, "release-group-genres", "/release-group/"+url.PathEscape(id))
}

// ArtistGenres returns the genre tag names attached to an artist.
func (c *Client) ArtistGenres(ctx context.Context, id string) ([]string, error) {
	return c.entityGenres(ctx, "artist-genres", "/artist/"+url.PathEscape(id))
}

func (c *Client) entityGenres(ctx context.Context, call, path string) ([]string, error) {
	var response genreResponse
	if err := c.getJSON(ctx, call, path+"?inc=genres&fmt=json", &response); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(response.Genres))
	for _, genre := range response.Genres {
		if name := strings.TrimSpace(genre.Name); name != "" {
			names = append(names, name)
		}
	}
	return names, nil
}

func (c *Client) getJSON(ctx context.Context, call, path string, out any) error {
	startedAt := time.Now()
	status := "ok"
	defer func() {
		metrics.MusicBrainzRequestsTotal.WithLabelValues(call, status).Inc()
		metrics.MusicBrainzRequestDuration.WithLabelValues(call).Observe(time.Since(startedAt).Seconds())
	}()

	if err := c.limiter.Wait(ctx); err != nil {
		status = "error"
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+path, nil)
	if err != nil {
		status = "error"
		return err
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		status = "error"
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		status = "http_" + strconv.Itoa(resp.StatusCode)
		return fmt.Errorf("musicbrainz %s: %s", call, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		status = "error"
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		status = "error"
		return fmt.Errorf("musicbrainz %s: decode response: %w", call, err)
	}
	return nil
}
