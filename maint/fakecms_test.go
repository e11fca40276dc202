package maint

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/craigvc/cvcwebsolutions-sub003/cms"
)

// fakeCMS serves /api/<collection>[/<id>] from memory.
type fakeCMS struct {
	mu      sync.Mutex
	data    map[string][]map[string]any
	fail    map[string]int // id -> status to answer requests for that id with
	deletes []string
	patches map[string]map[string]any
	creates []map[string]any
	nextID  int
}

func newFakeCMS() *fakeCMS {
	return &fakeCMS{
		data:    map[string][]map[string]any{},
		fail:    map[string]int{},
		patches: map[string]map[string]any{},
		nextID:  1000,
	}
}

func (f *fakeCMS) add(collection string, docs ...map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[collection] = append(f.data[collection], docs...)
}

func (f *fakeCMS) docs(collection string) []map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]map[string]any(nil), f.data[collection]...)
}

func docID(d map[string]any) string {
	return cms.Doc(d).ID()
}

func (f *fakeCMS) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/api/"), "/")
	collection := parts[0]
	w.Header().Set("Content-Type", "application/json")

	if len(parts) == 1 && r.Method == http.MethodPost {
		var doc map[string]any
		if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
			http.Error(w, `{"error":"bad json"}`, http.StatusBadRequest)
			return
		}
		f.nextID++
		doc["id"] = f.nextID
		f.creates = append(f.creates, doc)
		f.data[collection] = append(f.data[collection], doc)
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{"doc": doc, "message": "created"})
		return
	}
	if len(parts) == 1 && r.Method == http.MethodGet {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		if page < 1 {
			page = 1
		}
		all := f.data[collection]
		for key, vals := range r.URL.Query() {
			field, ok := strings.CutPrefix(key, "where[")
			if !ok {
				continue
			}
			field, _, _ = strings.Cut(field, "]")
			var kept []map[string]any
			for _, d := range all {
				if cms.Doc(d).String(field) == vals[0] {
					kept = append(kept, d)
				}
			}
			all = kept
		}
		start := min((page-1)*limit, len(all))
		end := min(start+limit, len(all))
		docs := all[start:end]
		if docs == nil {
			docs = []map[string]any{}
		}
		json.NewEncoder(w).Encode(map[string]any{
			"docs":        docs,
			"totalDocs":   len(all),
			"limit":       limit,
			"page":        page,
			"hasNextPage": end < len(all),
		})
		return
	}
	if len(parts) != 2 {
		http.Error(w, `{"error":"bad path"}`, http.StatusBadRequest)
		return
	}
	id := parts[1]
	if code, ok := f.fail[id]; ok {
		http.Error(w, `{"error":"injected"}`, code)
		return
	}
	idx := -1
	for i, d := range f.data[collection] {
		if docID(d) == id {
			idx = i
		}
	}
	if idx < 0 {
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
		return
	}

	switch r.Method {
	case http.MethodGet:
		json.NewEncoder(w).Encode(f.data[collection][idx])
	case http.MethodDelete:
		f.deletes = append(f.deletes, id)
		docs := f.data[collection]
		f.data[collection] = append(docs[:idx:idx], docs[idx+1:]...)
		w.Write([]byte(`{"message":"deleted"}`))
	case http.MethodPatch:
		var fields map[string]any
		if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
			http.Error(w, `{"error":"bad json"}`, http.StatusBadRequest)
			return
		}
		f.patches[id] = fields
		for k, v := range fields {
			f.data[collection][idx][k] = v
		}
		json.NewEncoder(w).Encode(f.data[collection][idx])
	default:
		http.Error(w, `{"error":"method"}`, http.StatusMethodNotAllowed)
	}
}

func newFakeClient(t *testing.T, f *fakeCMS) *cms.Client {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	c, err := cms.New(srv.URL)
	require.NoError(t, err)
	return c
}

// unreachableClient points at a port nothing listens on.
func unreachableClient(t *testing.T) *cms.Client {
	t.Helper()
	c, err := cms.New("http://127.0.0.1:1")
	require.NoError(t, err)
	return c
}

func testRunner() (*Runner, *bytes.Buffer, *bytes.Buffer) {
	var out, errOut bytes.Buffer
	return &Runner{Out: &out, Err: &errOut}, &out, &errOut
}
