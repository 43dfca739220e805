package firestore

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/and161185/taskkeeper/internal/convert"
)

const (
	testProject = "p"
	testKey     = "api-key"
	testToken   = "id-token"
	docsPrefix  = "/v1/projects/p/databases/(default)/documents/"
)

// fakeStore emulates the document REST API for one project: collection create/list,
// document get/patch/delete with the exists precondition.
type fakeStore struct {
	t *testing.T

	mu       sync.Mutex
	docs     map[string]convert.Fields // handle -> fields
	order    []string                  // insertion order of handles
	pageSize int                       // documents per list page (0 = all)
	nextAuto int

	listStatus   int // forced status for list calls (0 = normal)
	createStatus int // forced status for create calls

	calls map[string]int // "METHOD kind" -> count, kind in {collection, document}
}

func newFakeStore(t *testing.T) (*fakeStore, *httptest.Server) {
	t.Helper()
	f := &fakeStore{t: t, docs: map[string]convert.Fields{}, calls: map[string]int{}}
	srv := httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeStore) count(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[key]
}

// putLegacy stores a document under a random-looking id, as older clients did.
func (f *fakeStore) putLegacy(userID string, fields convert.Fields) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextAuto++
	h := fmt.Sprintf("users/%s/tasks/auto%04d", userID, f.nextAuto)
	f.docs[h] = fields
	f.order = append(f.order, h)
	return h
}

func (f *fakeStore) fields(handle string) (convert.Fields, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.docs[handle]
	return d, ok
}

func (f *fakeStore) doc(handle string) convert.Document {
	return convert.Document{
		Name:       "projects/p/databases/(default)/documents/" + handle,
		Fields:     f.docs[handle],
		CreateTime: "2024-01-01T00:00:00Z",
	}
}

func writeErr(w http.ResponseWriter, status int, msg string) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"code": status, "message": msg}})
}

func (f *fakeStore) serve(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("key") != testKey {
		writeErr(w, http.StatusBadRequest, "API key not valid")
		return
	}
	if r.Header.Get("Authorization") != "Bearer "+testToken {
		writeErr(w, http.StatusUnauthorized, "UNAUTHENTICATED")
		return
	}
	path, ok := strings.CutPrefix(r.URL.Path, docsPrefix)
	if !ok {
		writeErr(w, http.StatusNotFound, "bad path")
		return
	}
	segs := strings.Split(path, "/")
	kind := "document"
	if len(segs)%2 == 1 {
		kind = "collection"
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[r.Method+" "+kind]++

	switch {
	case kind == "collection" && r.Method == http.MethodPost:
		if f.createStatus != 0 {
			writeErr(w, f.createStatus, "forced")
			return
		}
		var in convert.Document
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			writeErr(w, http.StatusBadRequest, err.Error())
			return
		}
		id := r.URL.Query().Get("documentId")
		if id == "" {
			f.nextAuto++
			id = fmt.Sprintf("auto%04d", f.nextAuto)
		}
		h := path + "/" + id
		if _, exists := f.docs[h]; exists {
			writeErr(w, http.StatusConflict, "Document already exists")
			return
		}
		f.docs[h] = in.Fields
		f.order = append(f.order, h)
		_ = json.NewEncoder(w).Encode(f.doc(h))

	case kind == "collection" && r.Method == http.MethodGet:
		if f.listStatus != 0 {
			writeErr(w, f.listStatus, "forced")
			return
		}
		var all []string
		for _, h := range f.order {
			if strings.HasPrefix(h, path+"/") {
				all = append(all, h)
			}
		}
		if len(all) == 0 {
			writeErr(w, http.StatusNotFound, "collection not found")
			return
		}
		start, _ := strconv.Atoi(r.URL.Query().Get("pageToken"))
		end := len(all)
		if f.pageSize > 0 && start+f.pageSize < end {
			end = start + f.pageSize
		}
		resp := convert.ListResponse{}
		for _, h := range all[start:end] {
			resp.Documents = append(resp.Documents, f.doc(h))
		}
		if end < len(all) {
			resp.NextPageToken = strconv.Itoa(end)
		}
		_ = json.NewEncoder(w).Encode(resp)

	case kind == "document" && r.Method == http.MethodGet:
		if _, ok := f.docs[path]; !ok {
			writeErr(w, http.StatusNotFound, "no document")
			return
		}
		_ = json.NewEncoder(w).Encode(f.doc(path))

	case kind == "document" && r.Method == http.MethodPatch:
		if r.URL.Query().Get("currentDocument.exists") != "true" {
			f.t.Errorf("PATCH without exists precondition")
		}
		if _, ok := f.docs[path]; !ok {
			writeErr(w, http.StatusNotFound, "no document")
			return
		}
		var in convert.Document
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			writeErr(w, http.StatusBadRequest, err.Error())
			return
		}
		f.docs[path] = in.Fields
		_ = json.NewEncoder(w).Encode(f.doc(path))

	case kind == "document" && r.Method == http.MethodDelete:
		if r.URL.Query().Get("currentDocument.exists") != "true" {
			f.t.Errorf("DELETE without exists precondition")
		}
		if _, ok := f.docs[path]; !ok {
			writeErr(w, http.StatusNotFound, "no document")
			return
		}
		delete(f.docs, path)
		for i, h := range f.order {
			if h == path {
				f.order = append(f.order[:i], f.order[i+1:]...)
				break
			}
		}
		_, _ = w.Write([]byte("{}"))

	default:
		writeErr(w, http.StatusMethodNotAllowed, "unsupported")
	}
}
