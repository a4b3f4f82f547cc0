// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/dhcpscry/internal/pipeline"
	"grimm.is/dhcpscry/internal/store"
)

func testServer(t *testing.T) (*Server, *History, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	history := NewHistory(10)
	return NewServer(st, history, NewHub(), nil), history, st
}

func obsFixture(id, osName string) *pipeline.Observation {
	return &pipeline.Observation{
		ID:          id,
		Timestamp:   time.Unix(1700000000, 0).UTC(),
		SourceIP:    "192.168.1.50",
		MAC:         "aa:bb:cc:11:22:33",
		MessageType: "DISCOVER",
		Hostname:    "DESKTOP-ABC123",
		OSName:      osName,
		DeviceClass: "Desktop/Laptop",
		Vendor:      "Microsoft",
		Confidence:  0.95,
		Method:      "dhcp",
	}
}

func getJSON(t *testing.T, handler http.Handler, url string, status int) map[string]interface{} {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, url, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, status, rec.Code, "body: %s", rec.Body.String())

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHandleHistory(t *testing.T) {
	s, history, _ := testServer(t)
	history.Record(obsFixture("obs-1", "Windows 11"))
	history.Record(obsFixture("obs-2", "macOS"))

	body := getJSON(t, s.Router(), "/api/history", http.StatusOK)
	assert.EqualValues(t, 2, body["count"])

	observations := body["observations"].([]interface{})
	require.Len(t, observations, 2)
	newest := observations[0].(map[string]interface{})
	assert.Equal(t, "obs-2", newest["id"], "history is newest first")

	limited := getJSON(t, s.Router(), "/api/history?limit=1", http.StatusOK)
	assert.EqualValues(t, 1, limited["count"])
}

func TestHandleLogsAndCount(t *testing.T) {
	s, _, st := testServer(t)
	require.NoError(t, st.Insert(obsFixture("obs-1", "Windows 11")))
	mac := obsFixture("obs-2", "macOS")
	mac.MAC = "bb:bb:bb:bb:bb:bb"
	require.NoError(t, st.Insert(mac))

	body := getJSON(t, s.Router(), "/api/logs", http.StatusOK)
	assert.EqualValues(t, 2, body["count"])

	filtered := getJSON(t, s.Router(), "/api/logs?os=macOS", http.StatusOK)
	assert.EqualValues(t, 1, filtered["count"])

	count := getJSON(t, s.Router(), "/api/logs/count?mac=bb:bb:bb:bb:bb:bb", http.StatusOK)
	assert.EqualValues(t, 1, count["count"])

	bad := getJSON(t, s.Router(), "/api/logs?from=notanumber", http.StatusBadRequest)
	assert.Equal(t, "invalid filter", bad["error"])
}

func TestHandleSearch(t *testing.T) {
	s, _, st := testServer(t)
	require.NoError(t, st.Insert(obsFixture("obs-1", "Windows 11")))

	body := getJSON(t, s.Router(), "/api/search?q=DESKTOP", http.StatusOK)
	assert.EqualValues(t, 1, body["count"])

	missing := getJSON(t, s.Router(), "/api/search", http.StatusBadRequest)
	assert.Equal(t, "query parameter q required", missing["error"])
}

func TestHandleStats(t *testing.T) {
	s, history, st := testServer(t)
	history.Record(obsFixture("obs-1", "Windows 11"))
	require.NoError(t, st.Insert(obsFixture("obs-1", "Windows 11")))

	body := getJSON(t, s.Router(), "/api/stats", http.StatusOK)
	assert.EqualValues(t, 1, body["observations_total"])
	assert.EqualValues(t, 1, body["stored_total"])
	assert.EqualValues(t, 1, body["unique_macs"])
	assert.EqualValues(t, 0, body["websocket_clients"])
	byType := body["by_message_type"].(map[string]interface{})
	assert.EqualValues(t, 1, byType["DISCOVER"])
	assert.Contains(t, body, "by_os")
	assert.Contains(t, body, "uptime_seconds")
}

func TestHandleHealth(t *testing.T) {
	s, _, _ := testServer(t)
	body := getJSON(t, s.Router(), "/healthz", http.StatusOK)
	assert.Equal(t, "ok", body["status"])
}

func TestMetricsEndpoint(t *testing.T) {
	s, _, _ := testServer(t)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "dhcpscry_")
}

func TestDashboardAssets(t *testing.T) {
	s, _, _ := testServer(t)

	cases := []struct {
		path        string
		contentType string
		contains    string
	}{
		{"/", "text/html", "<title>dhcpscry</title>"},
		{"/logs", "text/html", "filters"},
		{"/app.js", "application/javascript", "WebSocket"},
		{"/logs.js", "application/javascript", "/api/logs"},
		{"/styles.css", "text/css", "body"},
		{"/logs.css", "text/css", "#logs"},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, tc.path, nil)
		rec := httptest.NewRecorder()
		s.Router().ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code, tc.path)
		assert.Contains(t, rec.Header().Get("Content-Type"), tc.contentType, tc.path)
		assert.Contains(t, rec.Body.String(), tc.contains, tc.path)
	}
}

func TestDashboardUnknownPath(t *testing.T) {
	s, _, _ := testServer(t)
	req := httptest.NewRequest(http.MethodGet, "/nope.js", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStoreDisabled(t *testing.T) {
	s := NewServer(nil, NewHistory(10), NewHub(), nil)

	body := getJSON(t, s.Router(), "/api/logs", http.StatusServiceUnavailable)
	assert.Equal(t, "persistence disabled", body["error"])

	// History still works without a database.
	getJSON(t, s.Router(), "/api/history", http.StatusOK)
}

func TestHistorySnapshot(t *testing.T) {
	h := NewHistory(10)
	now := time.Unix(1700000000, 0).UTC()

	old := obsFixture("obs-1", "macOS")
	old.Timestamp = now.Add(-5 * time.Minute)
	old.MAC = "bb:bb:bb:bb:bb:bb"
	old.MessageType = "REQUEST"
	h.Record(old)

	recent := obsFixture("obs-2", "Windows 11")
	recent.Timestamp = now.Add(-30 * time.Second)
	recent.VendorClass = "MSFT 5.0"
	h.Record(recent)

	snap := h.Snapshot(now)
	assert.Equal(t, int64(2), snap.Total)
	assert.Equal(t, 2, snap.UniqueMACs)
	assert.Equal(t, int64(1), snap.ByMessageType["DISCOVER"])
	assert.Equal(t, int64(1), snap.ByMessageType["REQUEST"])
	assert.Equal(t, int64(1), snap.ByVendorClass["MSFT 5.0"])
	assert.Equal(t, 1, snap.PerMinute, "only the entry inside the last minute counts")
}

func TestHistoryRingEviction(t *testing.T) {
	h := NewHistory(3)
	for i := 0; i < 5; i++ {
		h.Record(obsFixture(string(rune('a'+i)), "Linux"))
	}

	recent := h.Recent(0)
	require.Len(t, recent, 3)
	assert.Equal(t, "e", recent[0].ID)
	assert.Equal(t, "c", recent[2].ID)
	assert.Equal(t, int64(5), h.Total())
}
