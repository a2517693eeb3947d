package httputil

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGetJSON(t *testing.T) {
	mock := NewMockHTTPClient()
	mock.AddResponse(http.StatusOK, `{"scenarios_run": 3}`)

	var out struct {
		ScenariosRun int `json:"scenarios_run"`
	}
	if err := GetJSON(context.Background(), mock, "http://aebd/api/metrics", &out); err != nil {
		t.Fatalf("GetJSON failed: %v", err)
	}
	if out.ScenariosRun != 3 {
		t.Errorf("ScenariosRun = %d, want 3", out.ScenariosRun)
	}
	if mock.RequestCount() != 1 {
		t.Errorf("got %d requests, want 1", mock.RequestCount())
	}
	if got := mock.Requests[0].Method; got != http.MethodGet {
		t.Errorf("method = %s, want GET", got)
	}
}

func TestPostJSON(t *testing.T) {
	mock := NewMockHTTPClient()
	mock.AddResponse(http.StatusOK, `{"action": "emergency_brake"}`)

	var out map[string]string
	if err := PostJSON(context.Background(), mock, "http://aebd/api/evaluate", []byte(`[]`), &out); err != nil {
		t.Fatalf("PostJSON failed: %v", err)
	}
	if out["action"] != "emergency_brake" {
		t.Errorf("action = %q", out["action"])
	}
	req := mock.Requests[0]
	if req.Header.Get("Content-Type") != "application/json" {
		t.Errorf("got Content-Type %q", req.Header.Get("Content-Type"))
	}
}

func TestPostJSON_NilOutDiscards(t *testing.T) {
	mock := NewMockHTTPClient()
	mock.AddResponse(http.StatusOK, `not json`)
	if err := PostJSON(context.Background(), mock, "http://aebd/x", nil, nil); err != nil {
		t.Fatalf("PostJSON failed: %v", err)
	}
}

func TestClient_APIError(t *testing.T) {
	mock := NewMockHTTPClient()
	mock.AddResponse(http.StatusBadRequest, `{"error": "invalid input: object 0: type: missing"}`)
	mock.AddResponse(http.StatusBadGateway, "upstream down\n")

	err := GetJSON(context.Background(), mock, "http://aebd/x", nil)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusBadRequest || apiErr.Message != "invalid input: object 0: type: missing" {
		t.Errorf("got %+v", apiErr)
	}

	err = GetJSON(context.Background(), mock, "http://aebd/x", nil)
	if !errors.As(err, &apiErr) || apiErr.Message != "upstream down" {
		t.Errorf("plain-text error = %v", err)
	}
}

func TestClient_TransportError(t *testing.T) {
	mock := NewMockHTTPClient()
	want := errors.New("connection refused")
	mock.AddErrorResponse(want)
	if err := GetJSON(context.Background(), mock, "http://aebd/x", nil); !errors.Is(err, want) {
		t.Errorf("error = %v, want %v", err, want)
	}
}

func TestClient_BadJSON(t *testing.T) {
	mock := NewMockHTTPClient()
	mock.AddResponse(http.StatusOK, `{`)
	var out map[string]any
	if err := GetJSON(context.Background(), mock, "http://aebd/x", &out); err == nil {
		t.Error("expected decode error")
	}
}

func TestClient_AgainstServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		WriteJSONOK(w, map[string]string{"path": r.URL.Path})
	}))
	defer srv.Close()

	var out map[string]string
	if err := GetJSON(context.Background(), srv.Client(), srv.URL+"/health", &out); err != nil {
		t.Fatalf("GetJSON failed: %v", err)
	}
	if out["path"] != "/health" {
		t.Errorf("path = %q", out["path"])
	}
}
