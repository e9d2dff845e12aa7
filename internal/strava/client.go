// Package strava wraps the provider REST API used to fetch activities,
// physiological streams, and athlete zone settings.
package strava

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/go-resty/resty/v2"
)

// ErrNotFound indicates the requested resource no longer exists upstream.
var ErrNotFound = errors.New("strava resource not found")

// AccessTokens resolves the stored provider token for an athlete. Tokens are
// written by the account-linking flow, which lives outside this service.
type AccessTokens interface {
	AccessToken(ctx context.Context, userID int64) (string, error)
}

// ActivitySummary is the subset of an activity's metadata the worker needs.
type ActivitySummary struct {
	ID           int64     `json:"id"`
	Type         string    `json:"type"`
	StartDate    time.Time `json:"start_date"`
	HasHeartrate bool      `json:"has_heartrate"`
}

// ZoneRange is one heart-rate band from the athlete's provider settings.
// A Max of -1 marks the open-ended top band.
type ZoneRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// AthleteZones is the athlete's heart-rate zone settings as returned by the
// provider.
type AthleteZones struct {
	HeartRate struct {
		CustomZones bool        `json:"custom_zones"`
		Zones       []ZoneRange `json:"zones"`
	} `json:"heart_rate"`
}

// Client calls the provider API on behalf of individual athletes.
type Client struct {
	http   *resty.Client
	tokens AccessTokens
	logger *log.Logger
}

// Option configures optional behaviour for the Client.
type Option func(*Client)

// WithLogger overrides the client logger.
func WithLogger(logger *log.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient constructs a Client for the given API base URL.
func NewClient(baseURL string, timeout time.Duration, tokens AccessTokens, opts ...Option) *Client {
	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(3).
		SetRetryWaitTime(time.Second).
		SetRetryMaxWaitTime(5*time.Second).
		SetHeader("Accept", "application/json")

	c := &Client{
		http:   httpClient,
		tokens: tokens,
		logger: log.New(log.Writer(), "[strava] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) request(ctx context.Context, userID int64) (*resty.Request, error) {
	token, err := c.tokens.AccessToken(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("resolve token for athlete %d: %w", userID, err)
	}
	return c.http.R().SetContext(ctx).SetAuthToken(token), nil
}

func checkStatus(resp *resty.Response) error {
	if resp.StatusCode() == 404 {
		return ErrNotFound
	}
	if resp.IsError() {
		return fmt.Errorf("strava: %s returned %d", resp.Request.URL, resp.StatusCode())
	}
	return nil
}

// FetchActivities returns one page of the athlete's activities started after
// the given instant, oldest first.
func (c *Client) FetchActivities(ctx context.Context, userID int64, after time.Time, page, perPage int) ([]ActivitySummary, error) {
	req, err := c.request(ctx, userID)
	if err != nil {
		return nil, err
	}

	var activities []ActivitySummary
	resp, err := req.
		SetQueryParams(map[string]string{
			"after":    fmt.Sprintf("%d", after.Unix()),
			"page":     fmt.Sprintf("%d", page),
			"per_page": fmt.Sprintf("%d", perPage),
		}).
		SetResult(&activities).
		Get("/athlete/activities")
	if err != nil {
		return nil, fmt.Errorf("fetch activities for athlete %d: %w", userID, err)
	}
	if err := checkStatus(resp); err != nil {
		return nil, err
	}
	return activities, nil
}

// CountActivities pages through the athlete's full history and reports how
// many activities exist after the given instant.
func (c *Client) CountActivities(ctx context.Context, userID int64, after time.Time) (int, error) {
	const perPage = 200
	total := 0
	for page := 1; ; page++ {
		batch, err := c.FetchActivities(ctx, userID, after, page, perPage)
		if err != nil {
			return 0, err
		}
		total += len(batch)
		if len(batch) < perPage {
			return total, nil
		}
	}
}

// FetchActivity returns one activity's metadata.
func (c *Client) FetchActivity(ctx context.Context, userID, activityID int64) (*ActivitySummary, error) {
	req, err := c.request(ctx, userID)
	if err != nil {
		return nil, err
	}

	var activity ActivitySummary
	resp, err := req.
		SetResult(&activity).
		Get(fmt.Sprintf("/activities/%d", activityID))
	if err != nil {
		return nil, fmt.Errorf("fetch activity %d: %w", activityID, err)
	}
	if err := checkStatus(resp); err != nil {
		return nil, err
	}
	return &activity, nil
}

// FetchActivityStreams returns the raw keyed stream payload for one activity.
// The result maps stream name to its series object and feeds straight into
// stream parsing; callers never inspect it themselves.
func (c *Client) FetchActivityStreams(ctx context.Context, userID, activityID int64) (map[string]any, error) {
	req, err := c.request(ctx, userID)
	if err != nil {
		return nil, err
	}

	var payload map[string]any
	resp, err := req.
		SetQueryParams(map[string]string{
			"keys":        "time,heartrate,distance,moving",
			"key_by_type": "true",
		}).
		SetResult(&payload).
		Get(fmt.Sprintf("/activities/%d/streams", activityID))
	if err != nil {
		return nil, fmt.Errorf("fetch streams for activity %d: %w", activityID, err)
	}
	if err := checkStatus(resp); err != nil {
		return nil, err
	}
	return payload, nil
}

// FetchAthleteZones returns the athlete's heart-rate zone settings.
func (c *Client) FetchAthleteZones(ctx context.Context, userID int64) (*AthleteZones, error) {
	req, err := c.request(ctx, userID)
	if err != nil {
		return nil, err
	}

	var zones AthleteZones
	resp, err := req.
		SetResult(&zones).
		Get("/athlete/zones")
	if err != nil {
		return nil, fmt.Errorf("fetch zones for athlete %d: %w", userID, err)
	}
	if err := checkStatus(resp); err != nil {
		return nil, err
	}
	return &zones, nil
}
