package tracking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/vesseleye/internal/clock"
	"github.com/vesseleye/internal/config"
	"go.uber.org/zap"
)

var (
	// ErrVesselNotFound means the tracking API has no vessel with the IMEI.
	ErrVesselNotFound = errors.New("vessel not found in tracking API")
	// ErrUnsuccessful means the API answered with success=false or no data.
	ErrUnsuccessful = errors.New("tracking API returned an unsuccessful response")
)

// Vessel is an entry of the tracking API vessel list.
type Vessel struct {
	ID   int64  `json:"id"`
	IMEI string `json:"imei"`
	Name string `json:"name"`
}

// Report is one normalized history entry. Latitude, longitude and
// timestamp are lifted out of the payload; every other key stays in Fields.
type Report struct {
	Timestamp time.Time              `json:"timestamp"`
	Latitude  *float64               `json:"latitude,omitempty"`
	Longitude *float64               `json:"longitude,omitempty"`
	Fields    map[string]interface{} `json:"fields"`
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
}

type historyEntry struct {
	Payload map[string]interface{} `json:"payload"`
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithClock(clk clock.Clock) Option {
	return func(c *Client) { c.clock = clk }
}

// Client talks to the external tracking API.
type Client struct {
	baseURL    string
	apiKey     string
	pageLimit  int
	httpClient *http.Client
	cache      *IdentityCache
	clock      clock.Clock
	logger     *zap.Logger
}

func NewClient(cfg config.TrackingConfig, cache *IdentityCache, logger *zap.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		pageLimit:  cfg.VesselPageLimit,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cache:      cache,
		clock:      clock.System{},
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.pageLimit <= 0 {
		c.pageLimit = 100
	}
	if c.cache == nil {
		c.cache = NewIdentityCache(time.Hour, 5*time.Minute, c.clock, nil, logger)
	}
	return c
}

// ListVessels fetches one page of the vessel list. search is optional.
func (c *Client) ListVessels(ctx context.Context, page, limit int, search string) ([]Vessel, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(limit))
	if search != "" {
		q.Set("search", search)
	}

	var vessels []Vessel
	if err := c.get(ctx, "/vessel/", q, &vessels); err != nil {
		return nil, fmt.Errorf("failed to list vessels: %w", err)
	}
	return vessels, nil
}

// ResolveVesselID maps an IMEI to the tracking API's vessel id through the
// identity cache. Lookup failures other than a plain miss are not cached.
func (c *Client) ResolveVesselID(ctx context.Context, imei string) (int64, error) {
	if id, found, cached := c.cache.Get(ctx, imei); cached {
		if !found {
			return 0, ErrVesselNotFound
		}
		return id, nil
	}

	vessels, err := c.ListVessels(ctx, 1, c.pageLimit, "")
	if err != nil {
		return 0, err
	}
	for _, v := range vessels {
		if v.IMEI == imei {
			c.cache.Set(ctx, imei, v.ID)
			c.logger.Debug("resolved vessel id", zap.String("imei", imei), zap.Int64("external_id", v.ID))
			return v.ID, nil
		}
	}

	c.cache.SetMiss(ctx, imei)
	c.logger.Warn("no vessel found in tracking API", zap.String("imei", imei))
	return 0, ErrVesselNotFound
}

// FetchHistory returns up to maxPoints reports from the last windowMinutes,
// newest first.
func (c *Client) FetchHistory(ctx context.Context, externalID int64, windowMinutes, maxPoints int) ([]Report, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(maxPoints))
	q.Set("sort_by", "timestamp")
	q.Set("sort_as", "desc")

	var entries []historyEntry
	if err := c.get(ctx, fmt.Sprintf("/vessel/history/%d", externalID), q, &entries); err != nil {
		return nil, fmt.Errorf("failed to fetch history for vessel %d: %w", externalID, err)
	}

	floor := c.clock.Now().Add(-time.Duration(windowMinutes) * time.Minute)
	reports := make([]Report, 0, len(entries))
	for _, e := range entries {
		r, ok := normalize(e.Payload)
		if !ok || r.Timestamp.Before(floor) {
			continue
		}
		reports = append(reports, r)
	}

	// The API is asked for descending order; enforce it anyway.
	sort.SliceStable(reports, func(i, j int) bool {
		return reports[i].Timestamp.After(reports[j].Timestamp)
	})
	return reports, nil
}

func (c *Client) CacheStats() CacheStats {
	return c.cache.Stats()
}

func (c *Client) ClearCache(ctx context.Context) {
	c.cache.Clear(ctx)
	c.logger.Info("vessel identity cache cleared")
}

func normalize(payload map[string]interface{}) (Report, bool) {
	if payload == nil {
		return Report{}, false
	}
	ts, ok := toFloat(payload["timestamp"])
	if !ok {
		return Report{}, false
	}

	r := Report{
		Timestamp: time.Unix(0, int64(ts*float64(time.Second))).UTC(),
		Fields:    make(map[string]interface{}, len(payload)),
	}
	lat, latOK := toFloat(payload["latitude"])
	lon, lonOK := toFloat(payload["longitude"])
	if latOK && lonOK {
		r.Latitude, r.Longitude = &lat, &lon
	}
	// Position and timestamp stay in the field bag so rules can target them.
	for k, v := range payload {
		r.Fields[k] = v
	}
	return r, true
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func (c *Client) get(ctx context.Context, endpoint string, q url.Values, v interface{}) error {
	u := c.baseURL + endpoint
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("request failed with status %d", resp.StatusCode)
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if !env.Success || len(env.Data) == 0 || string(env.Data) == "null" {
		return ErrUnsuccessful
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		return fmt.Errorf("failed to decode data: %w", err)
	}
	return nil
}
