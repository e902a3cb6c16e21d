package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"

	"skycast/internal/store"
)

func newTestApp(t *testing.T) (*testAppHarness, *store.Memory) {
	t.Helper()
	st := store.NewMemory()
	return &testAppHarness{t: t, app: New(st)}, st
}

type testAppHarness struct {
	t   *testing.T
	app *fiber.App
}

func (h *testAppHarness) do(method, target, body string) (int, map[string]any) {
	h.t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := h.app.Test(req)
	if err != nil {
		h.t.Fatalf("%s %s: %v", method, target, err)
	}
	defer resp.Body.Close()

	var envelope map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		h.t.Fatalf("%s %s: decode body: %v", method, target, err)
	}
	return resp.StatusCode, envelope
}

func seed(t *testing.T, st *store.Memory, timestamps ...int64) {
	t.Helper()
	for _, ts := range timestamps {
		if _, err := st.InsertReading(context.Background(), store.Reading{Timestamp: ts, Weather: "clear sky"}); err != nil {
			t.Fatalf("seed reading %d: %v", ts, err)
		}
	}
}

func dataTimestamps(t *testing.T, envelope map[string]any) []int64 {
	t.Helper()
	items, ok := envelope["data"].([]any)
	if !ok {
		t.Fatalf("data = %v (%T); want array", envelope["data"], envelope["data"])
	}
	out := make([]int64, 0, len(items))
	for _, item := range items {
		m := item.(map[string]any)
		out = append(out, int64(m["timestamp"].(float64)))
	}
	return out
}

func TestRecentReadings_AscendingOrder(t *testing.T) {
	h, st := newTestApp(t)
	seed(t, st, 3000, 1000, 2000)

	status, envelope := h.do(http.MethodGet, "/api/readings/recent?limit=2", "")
	if status != http.StatusOK {
		t.Fatalf("status = %d; want %d", status, http.StatusOK)
	}
	if envelope["status"] != "success" {
		t.Errorf("status field = %v; want success", envelope["status"])
	}

	got := dataTimestamps(t, envelope)
	// Store order is [3000, 2000]; API reverses to ascending.
	want := []int64{2000, 3000}
	if len(got) != len(want) {
		t.Fatalf("got %d items, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("data[%d].timestamp = %d; want %d", i, got[i], want[i])
		}
	}
}

func TestRecentReadings_NonNumericLimitFallsBack(t *testing.T) {
	h, st := newTestApp(t)
	seed(t, st, 1000, 2000, 3000)

	status, envelope := h.do(http.MethodGet, "/api/readings/recent?limit=abc", "")
	if status != http.StatusOK {
		t.Fatalf("status = %d; want %d", status, http.StatusOK)
	}
	if got := dataTimestamps(t, envelope); len(got) != 3 {
		t.Errorf("got %d items, want all 3 under the default limit", len(got))
	}
}

func TestRecentReadings_EmptyStore(t *testing.T) {
	h, _ := newTestApp(t)

	status, envelope := h.do(http.MethodGet, "/api/readings/recent", "")
	if status != http.StatusOK {
		t.Fatalf("status = %d; want %d", status, http.StatusOK)
	}
	if got := dataTimestamps(t, envelope); len(got) != 0 {
		t.Errorf("got %d items, want 0", len(got))
	}
}

func TestGetSettings_NotFound(t *testing.T) {
	h, _ := newTestApp(t)

	status, envelope := h.do(http.MethodGet, "/api/users/ghost/settings", "")
	if status != http.StatusNotFound {
		t.Fatalf("status = %d; want %d", status, http.StatusNotFound)
	}
	if envelope["status"] != "error" {
		t.Errorf("status field = %v; want error", envelope["status"])
	}
	if envelope["message"] != "User not found" {
		t.Errorf("message = %v; want %q", envelope["message"], "User not found")
	}
}

func TestSettings_RoundTrip(t *testing.T) {
	h, _ := newTestApp(t)

	status, envelope := h.do(http.MethodPut, "/api/users/u1/settings", `{"theme":"dark"}`)
	if status != http.StatusOK {
		t.Fatalf("PUT status = %d; want %d", status, http.StatusOK)
	}
	if envelope["message"] != "Settings updated" {
		t.Errorf("message = %v; want %q", envelope["message"], "Settings updated")
	}

	status, envelope = h.do(http.MethodGet, "/api/users/u1/settings", "")
	if status != http.StatusOK {
		t.Fatalf("GET status = %d; want %d", status, http.StatusOK)
	}
	data, ok := envelope["data"].(map[string]any)
	if !ok {
		t.Fatalf("data = %v (%T); want object", envelope["data"], envelope["data"])
	}
	if data["theme"] != "dark" {
		t.Errorf("theme = %v; want dark", data["theme"])
	}
	if _, ok := data["updated_ts"]; !ok {
		t.Error("updated_ts missing from settings")
	}
}

func TestSettings_UpsertMerges(t *testing.T) {
	h, _ := newTestApp(t)

	h.do(http.MethodPost, "/api/users/u1/settings", `{"a":1}`)
	h.do(http.MethodPost, "/api/users/u1/settings", `{"b":2}`)

	status, envelope := h.do(http.MethodGet, "/api/users/u1/settings", "")
	if status != http.StatusOK {
		t.Fatalf("status = %d; want %d", status, http.StatusOK)
	}
	data := envelope["data"].(map[string]any)
	if _, ok := data["a"]; !ok {
		t.Error("merge dropped field a")
	}
	if _, ok := data["b"]; !ok {
		t.Error("merge dropped field b")
	}
}

func TestSettings_RejectsBadBodies(t *testing.T) {
	h, _ := newTestApp(t)

	for name, body := range map[string]string{
		"empty":     "",
		"not json":  "{{{",
		"empty map": "{}",
		"array":     `[1,2]`,
	} {
		t.Run(name, func(t *testing.T) {
			status, envelope := h.do(http.MethodPost, "/api/users/u1/settings", body)
			if status != http.StatusBadRequest {
				t.Errorf("status = %d; want %d", status, http.StatusBadRequest)
			}
			if envelope["status"] != "error" {
				t.Errorf("status field = %v; want error", envelope["status"])
			}
		})
	}
}

func TestUnknownRoute_ErrorEnvelope(t *testing.T) {
	h, _ := newTestApp(t)

	status, envelope := h.do(http.MethodGet, "/api/nope", "")
	if status != http.StatusNotFound {
		t.Fatalf("status = %d; want %d", status, http.StatusNotFound)
	}
	if envelope["status"] != "error" {
		t.Errorf("status field = %v; want error", envelope["status"])
	}
}

func TestHealthz(t *testing.T) {
	h, _ := newTestApp(t)

	status, envelope := h.do(http.MethodGet, "/healthz", "")
	if status != http.StatusOK {
		t.Fatalf("status = %d; want %d", status, http.StatusOK)
	}
	if envelope["status"] != "ok" {
		t.Errorf("status field = %v; want ok", envelope["status"])
	}
}
