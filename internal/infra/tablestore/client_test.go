package tablestore

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"questionbank/internal/domain"
)

func TestClientHeaders(t *testing.T) {
	fs, client := newFakeStore(t)
	ctx := context.Background()

	if _, err := client.Get(ctx, "roles", NewQuery().Select("*")); err != nil {
		t.Fatalf("get: %v", err)
	}
	req, _ := fs.request(http.MethodGet, "roles")
	if req.Header.Get("apikey") != "anon-key" || req.Header.Get("Authorization") != "Bearer jwt-token" {
		t.Fatalf("missing credentials: %v", req.Header)
	}
	if req.Header.Get("Prefer") != "" {
		t.Fatalf("reads should not ask for a representation")
	}

	if _, err := client.Post(ctx, "roles", []byte(`{"role_name":"admin"}`)); err != nil {
		t.Fatalf("post: %v", err)
	}
	req, _ = fs.request(http.MethodPost, "roles")
	if req.Header.Get("Prefer") != "return=representation" || req.Header.Get("Content-Type") != "application/json" {
		t.Fatalf("write headers missing: %v", req.Header)
	}
	if req.Header.Get("apikey") != "anon-key" {
		t.Fatalf("write lost credentials")
	}
}

func TestClientURLComposition(t *testing.T) {
	fs, client := newFakeStore(t)
	q := NewQuery().Select("*").Eq("username", "a b").Order("created_at", true).Offset(20).Limit(10)
	if _, err := client.Get(context.Background(), "users", q); err != nil {
		t.Fatalf("get: %v", err)
	}
	req, _ := fs.request(http.MethodGet, "users")
	if req.URL.Path != "/rest/v1/users" {
		t.Fatalf("unexpected path %s", req.URL.Path)
	}
	want := "select=*&username=eq.a+b&order=created_at.desc&offset=20&limit=10"
	if req.URL.RawQuery != want {
		t.Fatalf("query = %s, want %s", req.URL.RawQuery, want)
	}
}

func TestNon2xxSurfacesStatusAndBody(t *testing.T) {
	fs, client := newFakeStore(t)
	fs.failures["GET questions"] = fakeFailure{status: 500, body: `{"message":"boom"}`}
	repo := NewQuestionRepository(client, nil, zerolog.Nop())

	rows, err := repo.List(context.Background(), 0, 10)
	if err == nil {
		t.Fatalf("expected failure, got %d rows", len(rows))
	}
	if rows != nil {
		t.Fatalf("failure must not come with rows")
	}
	if !strings.Contains(err.Error(), "500") || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("error lacks status/body: %v", err)
	}
	var terr *domain.TransportError
	if !errors.As(err, &terr) || terr.StatusCode != 500 {
		t.Fatalf("expected TransportError with status 500, got %T", err)
	}
}

func TestClientTimeoutIsTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
		_, _ = w.Write([]byte("[]"))
	}))
	defer srv.Close()

	client := NewClient(Options{BaseURL: srv.URL, ReadTimeout: 50 * time.Millisecond}, zerolog.Nop())
	start := time.Now()
	_, err := client.Get(context.Background(), "questions", nil)
	if err == nil {
		t.Fatalf("expected timeout error, got empty result")
	}
	var terr *domain.TransportError
	if !errors.As(err, &terr) || terr.StatusCode != 0 {
		t.Fatalf("expected network-level TransportError, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Fatalf("timeout not honoured")
	}
}

func TestEmptyBodiesAreSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()
	client := NewClient(Options{BaseURL: srv.URL}, zerolog.Nop())
	roles := NewRoleRepository(client, zerolog.Nop())

	list, err := roles.List(context.Background())
	if err != nil || len(list) != 0 {
		t.Fatalf("expected empty list, got %v, %v", list, err)
	}
	if err := roles.Delete(context.Background(), 4); err != nil {
		t.Fatalf("delete with empty body should succeed: %v", err)
	}
	if err := roles.Update(context.Background(), &domain.Role{ID: 4, Name: "x"}); err != nil {
		t.Fatalf("update with empty body should succeed: %v", err)
	}
}

func TestPing(t *testing.T) {
	fs, client := newFakeStore(t)
	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
	req, _ := fs.request(http.MethodGet, "users")
	if req.URL.RawQuery != "limit=1" {
		t.Fatalf("unexpected ping query %s", req.URL.RawQuery)
	}

	fs.failures["GET users"] = fakeFailure{status: 401, body: "bad key"}
	if err := client.Ping(context.Background()); err == nil {
		t.Fatalf("expected ping failure")
	}
}
