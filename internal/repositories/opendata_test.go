package repositories

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/PedroFenixia/aemet-temperaturas/pkg/observe"
)

func testClient(baseURL string) *OpenDataClient {
	c := NewOpenDataClient(baseURL, "test-key", 5*time.Second, RetryPolicy{
		MaxAttempts:       3,
		RateLimitBackoff:  30 * time.Second,
		NetworkRetryPause: 5 * time.Second,
	}, observe.NewZapLogger("test-app"))
	c.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return c
}

func TestOpenDataClient_Fetch_TwoHopSuccess(t *testing.T) {
	var dataRequests int
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	mux.HandleFunc("/api/prediccion/especifica/municipio/diaria/28079", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("api_key") != "test-key" {
			t.Errorf("Expected api_key header on metadata hop, got %q", r.Header.Get("api_key"))
		}
		w.Write([]byte(`{"estado": 200, "datos": "` + server.URL + `/data", "descripcion": "exito"}`))
	})
	mux.HandleFunc("/data", func(w http.ResponseWriter, r *http.Request) {
		dataRequests++
		if r.Header.Get("api_key") != "" {
			t.Error("Data hop must be unauthenticated")
		}
		w.Write([]byte(`[{"nombre": "Madrid"}]`))
	})

	client := testClient(server.URL + "/api")
	payload, err := client.Fetch(context.Background(), DailyForecastEndpoint("28079"))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if string(payload) != `[{"nombre": "Madrid"}]` {
		t.Errorf("Unexpected payload: %s", payload)
	}
	if dataRequests != 1 {
		t.Errorf("Expected 1 data request, got %d", dataRequests)
	}
}

func TestOpenDataClient_Fetch_EnvelopeFailureState(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"estado": 404, "descripcion": "datos no encontrados"}`))
	}))
	defer server.Close()

	if _, err := testClient(server.URL).Fetch(context.Background(), "/x"); err == nil {
		t.Error("Expected error for non-200 envelope state, got nil")
	}
}

func TestOpenDataClient_Fetch_MissingDataURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"estado": 200}`))
	}))
	defer server.Close()

	if _, err := testClient(server.URL).Fetch(context.Background(), "/x"); err == nil {
		t.Error("Expected error for missing data URL, got nil")
	}
}

func TestOpenDataClient_Fetch_HTTPError(t *testing.T) {
	var requests int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	if _, err := testClient(server.URL).Fetch(context.Background(), "/x"); err == nil {
		t.Error("Expected error for HTTP 404, got nil")
	}
	if requests != 1 {
		t.Errorf("Non-200 responses must not be retried, got %d requests", requests)
	}
}

func TestOpenDataClient_Fetch_RateLimitBackoff(t *testing.T) {
	var requests int
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	mux.HandleFunc("/meta", func(w http.ResponseWriter, r *http.Request) {
		requests++
		if requests <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"estado": 200, "datos": "` + server.URL + `/data"}`))
	})
	mux.HandleFunc("/data", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok": true}`))
	})

	client := testClient(server.URL)
	var sleeps []time.Duration
	client.sleep = func(ctx context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return nil
	}

	if _, err := client.Fetch(context.Background(), "/meta"); err != nil {
		t.Fatalf("Expected success after backoff, got %v", err)
	}
	if len(sleeps) != 2 {
		t.Fatalf("Expected 2 backoff sleeps, got %d", len(sleeps))
	}
	// Linear schedule: 30s * (attempt+1).
	if sleeps[0] != 30*time.Second || sleeps[1] != 60*time.Second {
		t.Errorf("Unexpected backoff schedule: %v", sleeps)
	}
}

func TestOpenDataClient_Fetch_RateLimitExhaustion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	if _, err := testClient(server.URL).Fetch(context.Background(), "/x"); err == nil {
		t.Error("Expected error after exhausting retries, got nil")
	}
}

type failingTransport struct{ calls int }

func (f *failingTransport) Do(req *http.Request) (*http.Response, error) {
	f.calls++
	return nil, http.ErrHandlerTimeout
}

func TestOpenDataClient_Fetch_NetworkFailureRetries(t *testing.T) {
	client := testClient("http://example.invalid")
	transport := &failingTransport{}
	client.httpClient = transport

	var sleeps []time.Duration
	client.sleep = func(ctx context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return nil
	}

	if _, err := client.Fetch(context.Background(), "/x"); err == nil {
		t.Fatal("Expected error after network failures, got nil")
	}
	if transport.calls != 3 {
		t.Errorf("Expected 3 attempts, got %d", transport.calls)
	}
	// The pause is skipped after the final attempt.
	if len(sleeps) != 2 || sleeps[0] != 5*time.Second || sleeps[1] != 5*time.Second {
		t.Errorf("Unexpected network retry pauses: %v", sleeps)
	}
}

func TestOpenDataClient_Fetch_InvalidPayloadJSON(t *testing.T) {
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	mux.HandleFunc("/meta", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"estado": 200, "datos": "` + server.URL + `/data"}`))
	})
	mux.HandleFunc("/data", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("this is not json"))
	})

	if _, err := testClient(server.URL).Fetch(context.Background(), "/meta"); err == nil {
		t.Error("Expected error for invalid payload JSON, got nil")
	}
}

func TestOpenDataClient_Fetch_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		w.Write([]byte(`{"estado": 200, "datos": "http://example.invalid/data"}`))
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := testClient(server.URL).Fetch(ctx, "/x"); err == nil {
		t.Error("Expected error when context is cancelled, got nil")
	}
}
