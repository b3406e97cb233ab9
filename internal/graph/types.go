package graph

import (
	"encoding/json"
	"errors"
	"strconv"
)

// Kind identifies what a batch sub-request fetches.
type Kind string

const (
	KindProfile       Kind = "profile"
	KindDirectReports Kind = "directReports"
	KindPeople        Kind = "people"
	KindPresence      Kind = "presence"
	KindTimezone      Kind = "timezone"
)

// Key correlates a sub-request with its response. ID is the directory id the
// request is about; it may be empty for requests addressed to /me or covering
// many users.
type Key struct {
	Kind Kind
	ID   string
}

func (k Key) String() string {
	if k.ID == "" {
		return string(k.Kind)
	}
	return string(k.Kind) + ":" + k.ID
}

// Request is one sub-request of a $batch call. URL is relative to the
// versioned Graph root, e.g. "/users/{id}". Body is JSON-encoded when set.
type Request struct {
	Key     Key
	Method  string
	URL     string
	Body    any
	Headers map[string]string
}

// Response is the answer to one sub-request.
type Response struct {
	Status int
	Body   json.RawMessage
}

// OK reports whether the sub-request succeeded.
func (r Response) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// Decode unmarshals the response body into v.
func (r Response) Decode(v any) error {
	if len(r.Body) == 0 {
		return errors.New("empty response body")
	}
	return json.Unmarshal(r.Body, v)
}

// Responses holds the sub-responses of one batch round by key. Failed
// sub-requests are kept with their status.
type Responses map[Key]Response

// Success returns the response for key only if it is present and 2xx.
func (rs Responses) Success(key Key) (Response, bool) {
	r, ok := rs[key]
	if !ok || !r.OK() {
		return Response{}, false
	}
	return r, true
}

// statusClass buckets a sub-response status for metric labels.
func statusClass(status int) string {
	if status < 100 || status > 599 {
		return "other"
	}
	return strconv.Itoa(status/100) + "xx"
}
