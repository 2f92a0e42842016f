package inference

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestPredict_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/predict" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var req map[string]string
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req["image"] != "base64-frame" {
			t.Errorf("unexpected image payload: %q", req["image"])
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"emotion": "happy", "confidence": 0.93})
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second)
	pred, err := client.Predict(context.Background(), "base64-frame")
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if pred.Emotion != "happy" || pred.Confidence != 0.93 {
		t.Errorf("unexpected prediction: %+v", pred)
	}
}

func TestPredict_UpstreamFailures(t *testing.T) {
	testCases := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			"server error status",
			func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusInternalServerError) },
		},
		{
			"not json",
			func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("<html>")) },
		},
		{
			"missing emotion",
			func(w http.ResponseWriter, r *http.Request) {
				_ = json.NewEncoder(w).Encode(map[string]any{"confidence": 0.9})
			},
		},
		{
			"missing confidence",
			func(w http.ResponseWriter, r *http.Request) {
				_ = json.NewEncoder(w).Encode(map[string]any{"emotion": "happy"})
			},
		},
		{
			"confidence out of range",
			func(w http.ResponseWriter, r *http.Request) {
				_ = json.NewEncoder(w).Encode(map[string]any{"emotion": "happy", "confidence": 1.7})
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(tc.handler)
			defer server.Close()

			client := NewClient(server.URL, time.Second)
			_, err := client.Predict(context.Background(), "frame")
			if !errors.Is(err, ErrUnavailable) {
				t.Errorf("expected ErrUnavailable, got %v", err)
			}
		})
	}
}

func TestPredict_Timeout(t *testing.T) {
	block := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer server.Close()
	defer close(block)

	client := NewClient(server.URL, 50*time.Millisecond)
	start := time.Now()
	_, err := client.Predict(context.Background(), "frame")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable on timeout, got %v", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Error("timeout did not bound the call")
	}
}

func TestPredict_Unreachable(t *testing.T) {
	// Port from a server that is already closed.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client := NewClient(url, time.Second)
	if _, err := client.Predict(context.Background(), "frame"); !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable for unreachable service, got %v", err)
	}
}

func TestPredict_ContextCancelled(t *testing.T) {
	block := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer server.Close()
	defer close(block)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewClient(server.URL, time.Second)
	if _, err := client.Predict(ctx, "frame"); !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable for cancelled context, got %v", err)
	}
}
