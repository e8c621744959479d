package zentrysync_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mmdatafocus/factory_backend/zentrysync"
)

func newTestClient(t *testing.T, apiURL, tokenURL string) *zentrysync.Client {
	t.Helper()
	t.Setenv("ZENTRY_API_BASE_URL", apiURL)
	t.Setenv("ZENTRY_TOKEN_URL", tokenURL)
	t.Setenv("ZENTRY_CLIENT_ID", "test-client")
	t.Setenv("ZENTRY_CLIENT_SECRET", "test-secret")
	// Keep the per-call rate limiter from pacing the test.
	t.Setenv("ZENTRY_RATE_LIMIT_PER_MIN", "600000")

	expires := time.Now().Add(time.Hour)
	client, err := zentrysync.NewClient(zentrysync.ClientCredentials{
		AccessToken:    "initial-access",
		RefreshToken:   "initial-refresh",
		TokenExpiresAt: &expires,
		TenantRef:      "tenant-1",
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(client.Close)
	return client
}

func TestCloseStopsLimiter(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"Contacts":[]}`))
	}))
	defer api.Close()

	client := newTestClient(t, api.URL, api.URL+"/token")
	if _, err := client.Request(context.Background(), http.MethodGet, "/v2/Contacts", nil, nil); err != nil {
		t.Fatal(err)
	}
	// Closing twice must be safe alongside the t.Cleanup close.
	client.Close()
	client.Close()
}

func TestRequestSendsBearerAndTenant(t *testing.T) {
	var gotAuth, gotTenant string
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotTenant = r.Header.Get("Zentry-Tenant-Id")
		w.Write([]byte(`{"Contacts":[]}`))
	}))
	defer api.Close()

	client := newTestClient(t, api.URL, api.URL+"/token")
	raw, err := client.Request(context.Background(), http.MethodGet, "/v2/Contacts", nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if string(raw) != `{"Contacts":[]}` {
		t.Errorf("body = %s", raw)
	}
	if gotAuth != "Bearer initial-access" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotTenant != "tenant-1" {
		t.Errorf("Zentry-Tenant-Id = %q", gotTenant)
	}
}

func TestRequestRefreshesOnceOn401(t *testing.T) {
	var tokenCalls, apiCalls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&tokenCalls, 1)
		if got := r.FormValue("refresh_token"); got != "initial-refresh" {
			t.Errorf("refresh_token = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"fresh-access","refresh_token":"rotated-refresh","token_type":"Bearer","expires_in":1800}`))
	})
	mux.HandleFunc("/v2/Contacts", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&apiCalls, 1)
		if r.Header.Get("Authorization") != "Bearer fresh-access" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"Contacts":[]}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := newTestClient(t, srv.URL, srv.URL+"/token")
	if _, err := client.Request(context.Background(), http.MethodGet, "/v2/Contacts", nil, nil); err != nil {
		t.Fatal(err)
	}
	if n := atomic.LoadInt32(&tokenCalls); n != 1 {
		t.Errorf("token endpoint called %d times, want 1", n)
	}
	if n := atomic.LoadInt32(&apiCalls); n != 2 {
		t.Errorf("api called %d times, want 401 then retry", n)
	}
	if got := client.Token().RefreshToken; got != "rotated-refresh" {
		t.Errorf("rotated refresh token not kept: %q", got)
	}
}

func TestRequestRetriesOnceOn5xx(t *testing.T) {
	var apiCalls int32
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&apiCalls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer api.Close()

	client := newTestClient(t, api.URL, api.URL+"/token")
	_, err := client.Request(context.Background(), http.MethodGet, "/v2/Items", nil, nil)
	if !zentrysync.IsTransient(err) {
		t.Errorf("got %v, want TransientError", err)
	}
	if n := atomic.LoadInt32(&apiCalls); n != 2 {
		t.Errorf("api called %d times, want one bounded retry", n)
	}
}

func TestRequest5xxRecoversOnRetry(t *testing.T) {
	var apiCalls int32
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&apiCalls, 1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"Items":[]}`))
	}))
	defer api.Close()

	client := newTestClient(t, api.URL, api.URL+"/token")
	raw, err := client.Request(context.Background(), http.MethodGet, "/v2/Items", nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if string(raw) != `{"Items":[]}` {
		t.Errorf("body = %s", raw)
	}
}

func TestRequestClientErrorIsNotRetried(t *testing.T) {
	var apiCalls int32
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&apiCalls, 1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"Message":"validation failed"}`))
	}))
	defer api.Close()

	client := newTestClient(t, api.URL, api.URL+"/token")
	_, err := client.Request(context.Background(), http.MethodPost, "/v2/Invoices", nil, map[string]any{})
	if err == nil {
		t.Fatal("expected an error")
	}
	if zentrysync.IsTransient(err) || zentrysync.IsStructural(err) {
		t.Errorf("a 4xx is a plain error, got %v", err)
	}
	if n := atomic.LoadInt32(&apiCalls); n != 1 {
		t.Errorf("api called %d times, want 1", n)
	}
}

func TestRequestRejectsNonJSONSuccess(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>maintenance</html>"))
	}))
	defer api.Close()

	client := newTestClient(t, api.URL, api.URL+"/token")
	_, err := client.Request(context.Background(), http.MethodGet, "/v2/Quotes", nil, nil)
	if !zentrysync.IsStructural(err) {
		t.Errorf("got %v, want StructuralError", err)
	}
}

func TestRequestRejectsEmptySuccessBody(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer api.Close()

	client := newTestClient(t, api.URL, api.URL+"/token")
	_, err := client.Request(context.Background(), http.MethodGet, "/v2/Quotes", nil, nil)
	if !zentrysync.IsStructural(err) {
		t.Errorf("got %v, want StructuralError", err)
	}
}

func TestNewClientRequiresRefreshToken(t *testing.T) {
	if _, err := zentrysync.NewClient(zentrysync.ClientCredentials{AccessToken: "x"}); err == nil {
		t.Fatal("expected an error for a missing refresh token")
	}
}
