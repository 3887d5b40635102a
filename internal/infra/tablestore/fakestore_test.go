package tablestore

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
)

var idFields = map[string]string{
	"roles":                 "role_id",
	"users":                 "user_id",
	"question_categories":   "category_id",
	"question_difficulties": "difficulty_id",
	"questions":             "question_id",
}

// fakeStore is a minimal PostgREST stand-in: eq/ilike filters, offset/limit,
// representation bodies on writes.
type fakeStore struct {
	t *testing.T

	mu       sync.Mutex
	rows     map[string][]map[string]any
	nextID   map[string]int
	calls    map[string]int
	lastReq  map[string]*http.Request
	lastBody map[string]string

	// failures forces a status/body for "METHOD resource".
	failures map[string]fakeFailure
	// insertBody overrides the POST response body for a resource.
	insertBody map[string]string
}

type fakeFailure struct {
	status int
	body   string
}

func newFakeStore(t *testing.T) (*fakeStore, *Client) {
	t.Helper()
	fs := &fakeStore{
		t:          t,
		rows:       make(map[string][]map[string]any),
		nextID:     make(map[string]int),
		calls:      make(map[string]int),
		lastReq:    make(map[string]*http.Request),
		lastBody:   make(map[string]string),
		failures:   make(map[string]fakeFailure),
		insertBody: make(map[string]string),
	}
	srv := httptest.NewServer(fs)
	t.Cleanup(srv.Close)
	client := NewClient(Options{BaseURL: srv.URL, APIKey: "anon-key", Token: "jwt-token"}, zerolog.Nop())
	return fs, client
}

func (fs *fakeStore) seed(resource string, row map[string]any) int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.nextID[resource]++
	id := fs.nextID[resource]
	row[idFields[resource]] = float64(id)
	fs.rows[resource] = append(fs.rows[resource], row)
	return id
}

func (fs *fakeStore) count(method, resource string) int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.calls[method+" "+resource]
}

func (fs *fakeStore) request(method, resource string) (*http.Request, string) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	key := method + " " + resource
	return fs.lastReq[key], fs.lastBody[key]
}

func (fs *fakeStore) row(resource string, id int) map[string]any {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	for _, r := range fs.rows[resource] {
		if fmt.Sprint(r[idFields[resource]]) == fmt.Sprint(id) {
			return r
		}
	}
	return nil
}

func (fs *fakeStore) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resource := strings.TrimPrefix(r.URL.Path, RESTPrefix+"/")
	body, _ := io.ReadAll(r.Body)
	key := r.Method + " " + resource

	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.calls[key]++
	fs.lastReq[key] = r
	fs.lastBody[key] = string(body)

	if f, ok := fs.failures[key]; ok {
		w.WriteHeader(f.status)
		_, _ = io.WriteString(w, f.body)
		return
	}

	matched, rest := fs.filter(resource, r)
	switch r.Method {
	case http.MethodGet:
		q := r.URL.Query()
		var offset, limit int
		_, _ = fmt.Sscan(q.Get("offset"), &offset)
		_, _ = fmt.Sscan(q.Get("limit"), &limit)
		if offset > len(matched) {
			offset = len(matched)
		}
		matched = matched[offset:]
		if limit > 0 && limit < len(matched) {
			matched = matched[:limit]
		}
		fs.writeJSON(w, http.StatusOK, matched)
	case http.MethodPost:
		if override, ok := fs.insertBody[resource]; ok {
			w.WriteHeader(http.StatusCreated)
			_, _ = io.WriteString(w, override)
			return
		}
		var row map[string]any
		if err := json.Unmarshal(body, &row); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if _, ok := row[idFields[resource]]; ok {
			fs.t.Errorf("client sent identifier %s on insert: %s", idFields[resource], body)
		}
		fs.nextID[resource]++
		row[idFields[resource]] = float64(fs.nextID[resource])
		row["created_at"] = "2024-01-01T00:00:00Z"
		fs.rows[resource] = append(fs.rows[resource], row)
		fs.writeJSON(w, http.StatusCreated, []map[string]any{row})
	case http.MethodPatch:
		var patch map[string]any
		if err := json.Unmarshal(body, &patch); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		for _, row := range matched {
			for k, v := range patch {
				row[k] = v
			}
		}
		fs.writeJSON(w, http.StatusOK, matched)
	case http.MethodDelete:
		fs.rows[resource] = rest
		fs.writeJSON(w, http.StatusOK, matched)
	}
}

// filter splits the resource rows into those matching the query and the rest.
func (fs *fakeStore) filter(resource string, r *http.Request) (matched, rest []map[string]any) {
	for _, row := range fs.rows[resource] {
		if matches(row, r) {
			matched = append(matched, row)
		} else {
			rest = append(rest, row)
		}
	}
	if matched == nil {
		matched = []map[string]any{}
	}
	return matched, rest
}

func matches(row map[string]any, r *http.Request) bool {
	for field, values := range r.URL.Query() {
		switch field {
		case "select", "order", "offset", "limit":
			continue
		}
		for _, v := range values {
			got := fmt.Sprint(row[field])
			switch {
			case strings.HasPrefix(v, "eq."):
				if got != strings.TrimPrefix(v, "eq.") {
					return false
				}
			case strings.HasPrefix(v, "ilike."):
				needle := strings.Trim(strings.TrimPrefix(v, "ilike."), "*")
				if !strings.Contains(strings.ToLower(got), strings.ToLower(needle)) {
					return false
				}
			}
		}
	}
	return true
}

func (fs *fakeStore) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
