package client

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vesseleye/internal/alert"
	"github.com/vesseleye/internal/models"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(srv.URL+"/", "k3y", srv.Client())
}

func TestListAlertsEncodesQuery(t *testing.T) {
	since := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/alerts", r.URL.Path)
		assert.Equal(t, "k3y", r.Header.Get("X-API-Key"))
		assert.Equal(t, "3", r.URL.Query().Get("vessel_id"))
		assert.Equal(t, "active", r.URL.Query().Get("status"))
		assert.Equal(t, "2024-03-01T12:00:00Z", r.URL.Query().Get("since"))
		_ = json.NewEncoder(w).Encode([]models.Alert{{VesselID: 3, Status: models.AlertStatusActive}})
	})

	alerts, err := c.ListAlerts(context.Background(), alert.AlertFilter{VesselID: 3, Status: models.AlertStatusActive, Since: &since})
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.EqualValues(t, 3, alerts[0].VesselID)
}

func TestAPIErrorIsSurfaced(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error":"invalid alert status transition"}`))
	})

	_, err := c.AcknowledgeAlert(context.Background(), 9)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "409")
	assert.Contains(t, err.Error(), "invalid alert status transition")
}

func TestMuteRuleSendsMinutes(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/api/v1/rules/4/mute", r.URL.Path)
		var body map[string]int
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, 15, body["minutes"])
		_ = json.NewEncoder(w).Encode(models.AlertRule{IsMuted: true})
	})

	rule, err := c.MuteRule(context.Background(), 4, 15)
	require.NoError(t, err)
	assert.True(t, rule.IsMuted)
}

func TestEvaluateGeofencesWithoutPositionSendsNoBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/vessels/2/geofences/evaluate", r.URL.Path)
		assert.EqualValues(t, 0, r.ContentLength)
		_, _ = w.Write([]byte(`{"position":{"latitude":1,"longitude":2},"violations":[]}`))
	})

	res, err := c.EvaluateGeofences(context.Background(), 2, nil)
	require.NoError(t, err)
	assert.Equal(t, 2.0, res.Position.Longitude)
	assert.Empty(t, res.Violations)
}

func TestExportAlertReport(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "html", r.URL.Query().Get("format"))
		_, _ = w.Write([]byte("<html>report</html>"))
	})

	var buf bytes.Buffer
	require.NoError(t, c.ExportAlertReport(context.Background(), nil, nil, &buf))
	assert.Equal(t, "<html>report</html>", buf.String())
}

func TestNewClientFromEnv(t *testing.T) {
	t.Setenv(EnvAPIKey, "")
	_, err := NewClientFromEnv()
	assert.Error(t, err)

	t.Setenv(EnvAPIKey, "abc")
	t.Setenv(EnvAPIURL, "http://vesseleye:9090")
	c, err := NewClientFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "http://vesseleye:9090", c.baseURL)
}
