// Package statsapi is a small client for the stats.nba.com JSON endpoints
// used by the backfill: the player directory and per-player game logs.
package statsapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/courtside-labs/gamelog-backfill/internal/dataset"
)

const (
	// DefaultBaseURL is the public stats API root.
	DefaultBaseURL = "https://stats.nba.com/stats"
	// DefaultUserAgent mimics a desktop browser; the API rejects obvious bots.
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	// LeagueNBA and LeagueWNBA are the league IDs accepted by the API.
	LeagueNBA  = "00"
	LeagueWNBA = "10"

	maxErrorBody = 512
)

// ErrNoResultSet is returned when a response does not contain the
// expected result set.
var ErrNoResultSet = errors.New("result set missing from response")

// StatusError is returned for non-200 responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("stats api status %d: %s", e.StatusCode, e.Body)
}

// Options configures a Client.
type Options struct {
	BaseURL           string
	LeagueID          string
	Season            string
	SeasonType        string
	OnlyCurrentSeason bool
	// Timeout bounds every call, including reading the body.
	Timeout   time.Duration
	UserAgent string
	// MaxRequestsPerSecond and Burst configure the local token bucket.
	// Zero disables it.
	MaxRequestsPerSecond float64
	Burst                int
	HTTPClient           *http.Client
}

// Client talks to the stats API.
type Client struct {
	httpClient        *http.Client
	baseURL           string
	leagueID          string
	season            string
	seasonType        string
	onlyCurrentSeason bool
	timeout           time.Duration
	userAgent         string
	rateLimiter       *RateLimiter
	logger            *logrus.Entry
}

// New creates a Client. Unset options fall back to the NBA regular season
// against DefaultBaseURL with a 30 second timeout.
func New(opts Options, logger *logrus.Entry) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.LeagueID == "" {
		opts.LeagueID = LeagueNBA
	}
	if opts.SeasonType == "" {
		opts.SeasonType = "Regular Season"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}

	log := logger.WithField("component", "statsapi")
	return &Client{
		httpClient:        opts.HTTPClient,
		baseURL:           strings.TrimRight(opts.BaseURL, "/"),
		leagueID:          opts.LeagueID,
		season:            opts.Season,
		seasonType:        opts.SeasonType,
		onlyCurrentSeason: opts.OnlyCurrentSeason,
		timeout:           opts.Timeout,
		userAgent:         opts.UserAgent,
		rateLimiter:       NewRateLimiter(opts.MaxRequestsPerSecond, opts.Burst, log.WithField("component", "rate_limiter")),
		logger:            log,
	}
}

// RateLimiter returns the rate limiter associated with this client.
func (c *Client) RateLimiter() *RateLimiter {
	return c.rateLimiter
}

// WaitBackoff blocks until any Retry-After window announced by the server
// has passed. Callers that bound each request with a deadline call this
// first, so the backoff is not charged against the request.
func (c *Client) WaitBackoff(ctx context.Context) error {
	return c.rateLimiter.WaitBackoff(ctx)
}

// ListIdentifiers lists the league's players.
func (c *Client) ListIdentifiers(ctx context.Context) ([]dataset.Identifier, error) {
	return c.ListPlayers(ctx)
}

// Fetch returns the player's game log.
func (c *Client) Fetch(ctx context.Context, id dataset.Identifier) ([]dataset.Record, error) {
	return c.PlayerGameLog(ctx, id)
}

// resultSet is one table inside a stats API response.
type resultSet struct {
	Name    string          `json:"name"`
	Headers []string        `json:"headers"`
	RowSet  [][]interface{} `json:"rowSet"`
}

type response struct {
	ResultSets []resultSet `json:"resultSets"`
	// A few endpoints return a single object instead of a list.
	ResultSet *resultSet `json:"resultSet"`
}

// find returns the named set, or the first one when name is empty.
func (r *response) find(name string) (*resultSet, error) {
	sets := r.ResultSets
	if r.ResultSet != nil {
		sets = append(sets, *r.ResultSet)
	}
	for i := range sets {
		if name == "" || strings.EqualFold(sets[i].Name, name) {
			return &sets[i], nil
		}
	}
	if name == "" {
		return nil, ErrNoResultSet
	}
	return nil, fmt.Errorf("%w: %s", ErrNoResultSet, name)
}

// getResultSet performs one rate-limited, time-bounded GET against
// endpoint and returns the requested result set.
func (c *Client) getResultSet(ctx context.Context, endpoint string, params url.Values, name string) (*resultSet, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	u := c.baseURL + "/" + endpoint + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Referer", "https://www.nba.com/")
	req.Header.Set("Origin", "https://www.nba.com")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("x-nba-stats-origin", "stats")
	req.Header.Set("x-nba-stats-token", "true")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	c.rateLimiter.UpdateFromHeaders(resp.Header)

	c.logger.WithFields(logrus.Fields{
		"endpoint": endpoint,
		"status":   resp.StatusCode,
		"duration": time.Since(start).Round(time.Millisecond),
	}).Trace("stats api request")

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var decoded response
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return decoded.find(name)
}
