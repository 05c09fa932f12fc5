package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/vesseleye/internal/alert"
	"github.com/vesseleye/internal/geofence"
	"github.com/vesseleye/internal/models"
	"github.com/vesseleye/internal/monitor"
	"github.com/vesseleye/internal/report"
)

const (
	EnvAPIURL = "VESSELEYE_API_URL"
	EnvAPIKey = "VESSELEYE_API_KEY"
)

// Client talks to the VesselEye REST API with a static API key.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func New(baseURL, apiKey string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: httpClient,
	}
}

// NewClientFromEnv reads VESSELEYE_API_URL and VESSELEYE_API_KEY.
func NewClientFromEnv() (*Client, error) {
	baseURL := os.Getenv(EnvAPIURL)
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}

	apiKey := os.Getenv(EnvAPIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("%s environment variable is not set", EnvAPIKey)
	}
	return New(baseURL, apiKey, nil), nil
}

func (c *Client) FetcherStatus(ctx context.Context) (*monitor.Status, error) {
	var st monitor.Status
	if err := c.do(ctx, http.MethodGet, "/api/v1/fetcher/status", nil, nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func (c *Client) TriggerFetch(ctx context.Context) (*monitor.CycleResult, error) {
	var res monitor.CycleResult
	if err := c.do(ctx, http.MethodPost, "/api/v1/fetcher/trigger", nil, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

type FetcherControl struct {
	Changed bool           `json:"changed"`
	Status  monitor.Status `json:"status"`
}

func (c *Client) StartFetcher(ctx context.Context) (*FetcherControl, error) {
	var res FetcherControl
	if err := c.do(ctx, http.MethodPost, "/api/v1/fetcher/start", nil, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) StopFetcher(ctx context.Context) (*FetcherControl, error) {
	var res FetcherControl
	if err := c.do(ctx, http.MethodPost, "/api/v1/fetcher/stop", nil, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) ClearCache(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/fetcher/cache", nil, nil, nil)
}

func (c *Client) ListVessels(ctx context.Context, search string, atSea *bool) ([]models.Vessel, error) {
	query := url.Values{}
	if search != "" {
		query.Set("search", search)
	}
	if atSea != nil {
		query.Set("at_sea", strconv.FormatBool(*atSea))
	}
	var vessels []models.Vessel
	if err := c.do(ctx, http.MethodGet, "/api/v1/vessels", query, nil, &vessels); err != nil {
		return nil, err
	}
	return vessels, nil
}

func (c *Client) LatestTelemetry(ctx context.Context, vesselID uint) (*models.TelemetryReport, error) {
	var r models.TelemetryReport
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/v1/vessels/%d/telemetry/latest", vesselID), nil, nil, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

type GeofenceResult struct {
	Position   models.Position      `json:"position"`
	Violations []geofence.Violation `json:"violations"`
}

// EvaluateGeofences checks pos, or the vessel's last known position when
// pos is nil, against the vessel's geofences.
func (c *Client) EvaluateGeofences(ctx context.Context, vesselID uint, pos *models.Position) (*GeofenceResult, error) {
	var body interface{}
	if pos != nil {
		body = map[string]float64{"latitude": pos.Latitude, "longitude": pos.Longitude}
	}
	var res GeofenceResult
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/v1/vessels/%d/geofences/evaluate", vesselID), nil, body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) ListAlerts(ctx context.Context, f alert.AlertFilter) ([]models.Alert, error) {
	query := url.Values{}
	if f.VesselID != 0 {
		query.Set("vessel_id", strconv.FormatUint(uint64(f.VesselID), 10))
	}
	if f.RuleID != 0 {
		query.Set("rule_id", strconv.FormatUint(uint64(f.RuleID), 10))
	}
	if f.Status != "" {
		query.Set("status", string(f.Status))
	}
	if f.Since != nil {
		query.Set("since", f.Since.UTC().Format(time.RFC3339))
	}
	if f.Limit > 0 {
		query.Set("limit", strconv.Itoa(f.Limit))
	}

	var alerts []models.Alert
	if err := c.do(ctx, http.MethodGet, "/api/v1/alerts", query, nil, &alerts); err != nil {
		return nil, err
	}
	return alerts, nil
}

func (c *Client) AlertStats(ctx context.Context, vesselID uint) (*alert.AlertStats, error) {
	query := url.Values{}
	if vesselID != 0 {
		query.Set("vessel_id", strconv.FormatUint(uint64(vesselID), 10))
	}
	var stats alert.AlertStats
	if err := c.do(ctx, http.MethodGet, "/api/v1/alerts/stats", query, nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

func (c *Client) AcknowledgeAlert(ctx context.Context, id uint) (*models.Alert, error) {
	var a models.Alert
	if err := c.do(ctx, http.MethodPut, fmt.Sprintf("/api/v1/alerts/%d/acknowledge", id), nil, nil, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (c *Client) ResolveAlert(ctx context.Context, id uint) (*models.Alert, error) {
	var a models.Alert
	if err := c.do(ctx, http.MethodPut, fmt.Sprintf("/api/v1/alerts/%d/resolve", id), nil, nil, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (c *Client) ListRules(ctx context.Context, vesselID uint) ([]models.AlertRule, error) {
	query := url.Values{}
	if vesselID != 0 {
		query.Set("vessel_id", strconv.FormatUint(uint64(vesselID), 10))
	}
	var rules []models.AlertRule
	if err := c.do(ctx, http.MethodGet, "/api/v1/rules", query, nil, &rules); err != nil {
		return nil, err
	}
	return rules, nil
}

// MuteRule mutes a rule for minutes, or until unmuted when minutes is 0.
func (c *Client) MuteRule(ctx context.Context, id uint, minutes int) (*models.AlertRule, error) {
	var body interface{}
	if minutes > 0 {
		body = map[string]int{"minutes": minutes}
	}
	var r models.AlertRule
	if err := c.do(ctx, http.MethodPut, fmt.Sprintf("/api/v1/rules/%d/mute", id), nil, body, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (c *Client) UnmuteRule(ctx context.Context, id uint) (*models.AlertRule, error) {
	var r models.AlertRule
	if err := c.do(ctx, http.MethodPut, fmt.Sprintf("/api/v1/rules/%d/unmute", id), nil, nil, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (c *Client) EvaluatePending(ctx context.Context, vesselID uint) (*alert.BatchResult, error) {
	query := url.Values{}
	if vesselID != 0 {
		query.Set("vessel_id", strconv.FormatUint(uint64(vesselID), 10))
	}
	var res alert.BatchResult
	if err := c.do(ctx, http.MethodPost, "/api/v1/rules/evaluate-pending", query, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func reportQuery(start, end *time.Time) url.Values {
	query := url.Values{}
	if start != nil {
		query.Set("start", start.UTC().Format(time.RFC3339))
	}
	if end != nil {
		query.Set("end", end.UTC().Format(time.RFC3339))
	}
	return query
}

func (c *Client) AlertReport(ctx context.Context, start, end *time.Time) (*report.ReportData, error) {
	var data report.ReportData
	if err := c.do(ctx, http.MethodGet, "/api/v1/reports/alerts", reportQuery(start, end), nil, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// ExportAlertReport writes the HTML rendering of the report to w.
func (c *Client) ExportAlertReport(ctx context.Context, start, end *time.Time, w io.Writer) error {
	query := reportQuery(start, end)
	query.Set("format", "html")

	resp, err := c.doRequest(ctx, http.MethodGet, "/api/v1/reports/alerts", query, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	_, err = io.Copy(w, resp.Body)
	return err
}

func (c *Client) do(ctx context.Context, method, endpoint string, query url.Values, data, v interface{}) error {
	var body io.Reader
	if data != nil {
		jsonData, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		body = bytes.NewReader(jsonData)
	}

	resp, err := c.doRequest(ctx, method, endpoint, query, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if v != nil {
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

func (c *Client) doRequest(ctx context.Context, method, endpoint string, query url.Values, body io.Reader) (*http.Response, error) {
	u, err := url.Parse(c.baseURL + endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("X-API-Key", c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		var errResp struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil && errResp.Error != "" {
			return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, errResp.Error)
		}
		return nil, fmt.Errorf("request failed with status %d", resp.StatusCode)
	}

	return resp, nil
}
