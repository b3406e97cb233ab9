// Package graphtest provides an in-process fake of the Microsoft Graph
// endpoints the roster service uses, including the JSON $batch endpoint.
package graphtest

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
)

// HandlerFunc answers one Graph call. body is the JSON request body, if any.
// The returned value is JSON-encoded as the response body.
type HandlerFunc func(body json.RawMessage) (status int, resp any)

// Server is a fake Graph API. Direct calls and $batch sub-requests are routed
// through the same handler table, keyed by method and request URI.
type Server struct {
	*httptest.Server

	mu           sync.Mutex
	routes       map[string]HandlerFunc
	batchCalls   int
	batchSizes   []int
	subRequests  []string
	failBatchFor map[string]int
	lastAuth     string
}

// NewServer starts a fake Graph server. Callers must Close it.
func NewServer() *Server {
	s := &Server{
		routes:       make(map[string]HandlerFunc),
		failBatchFor: make(map[string]int),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serveHTTP))
	return s
}

// Handle registers fn for method and uri ("/users/u1", "/users/u1/people?$top=5").
func (s *Server) Handle(method, uri string, fn HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.routes[method+" "+uri] = fn
}

// HandleJSON registers a fixed answer for method and uri.
func (s *Server) HandleJSON(method, uri string, status int, resp any) {
	s.Handle(method, uri, func(json.RawMessage) (int, any) { return status, resp })
}

// FailBatchContaining makes every $batch call that carries a sub-request for
// uri fail as a whole with status.
func (s *Server) FailBatchContaining(uri string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failBatchFor[uri] = status
}

// BatchCalls returns the number of $batch exchanges served.
func (s *Server) BatchCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.batchCalls
}

// BatchSizes returns the sub-request count of each $batch exchange served.
func (s *Server) BatchSizes() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.batchSizes...)
}

// SubRequests returns "METHOD uri" for every batch sub-request served.
func (s *Server) SubRequests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.subRequests...)
}

// LastAuthorization returns the Authorization header of the latest call.
func (s *Server) LastAuthorization() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAuth
}

type batchItem struct {
	ID     string          `json:"id"`
	Method string          `json:"method"`
	URL    string          `json:"url"`
	Body   json.RawMessage `json:"body,omitempty"`
}

type batchAnswer struct {
	ID     string `json:"id"`
	Status int    `json:"status"`
	Body   any    `json:"body,omitempty"`
}

func (s *Server) serveHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.lastAuth = r.Header.Get("Authorization")
	s.mu.Unlock()

	body, _ := io.ReadAll(r.Body)

	if r.Method == http.MethodPost && r.URL.Path == "/$batch" {
		s.serveBatch(w, body)
		return
	}

	status, resp := s.dispatch(r.Method, r.URL.RequestURI(), body)
	writeJSON(w, status, resp)
}

func (s *Server) serveBatch(w http.ResponseWriter, body []byte) {
	var req struct {
		Requests []batchItem `json:"requests"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorPayload("BadRequest", "invalid batch payload"))
		return
	}

	s.mu.Lock()
	s.batchCalls++
	s.batchSizes = append(s.batchSizes, len(req.Requests))
	for _, item := range req.Requests {
		s.subRequests = append(s.subRequests, item.Method+" "+item.URL)
	}
	failStatus := 0
	for _, item := range req.Requests {
		if st, ok := s.failBatchFor[item.URL]; ok {
			failStatus = st
			break
		}
	}
	s.mu.Unlock()

	if failStatus != 0 {
		writeJSON(w, failStatus, errorPayload("ServiceUnavailable", "batch rejected"))
		return
	}
	if len(req.Requests) > 20 {
		writeJSON(w, http.StatusBadRequest, errorPayload("BadRequest", "too many requests in batch"))
		return
	}

	answers := make([]batchAnswer, 0, len(req.Requests))
	for _, item := range req.Requests {
		status, resp := s.dispatch(item.Method, item.URL, item.Body)
		answers = append(answers, batchAnswer{ID: item.ID, Status: status, Body: resp})
	}
	writeJSON(w, http.StatusOK, map[string]any{"responses": answers})
}

func (s *Server) dispatch(method, uri string, body json.RawMessage) (int, any) {
	if !strings.HasPrefix(uri, "/") {
		uri = "/" + uri
	}
	s.mu.Lock()
	fn, ok := s.routes[method+" "+uri]
	s.mu.Unlock()
	if !ok {
		return http.StatusNotFound, errorPayload("Request_ResourceNotFound", "no route for "+method+" "+uri)
	}
	return fn(body)
}

func errorPayload(code, message string) map[string]any {
	return map[string]any{"error": map[string]string{"code": code, "message": message}}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
