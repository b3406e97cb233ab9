package roster

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/team-roster/team-roster/internal/graph"
	"github.com/team-roster/team-roster/internal/middleware"
	"github.com/team-roster/team-roster/internal/safego"
	"github.com/team-roster/team-roster/internal/telemetry"
)

// Directory is the part of the Graph client the roster engine needs.
type Directory interface {
	Batch(ctx context.Context, reqs []graph.Request) (graph.Responses, error)
	Get(ctx context.Context, path string, out any) error
}

// Outcome says how an enrichment fetch ended.
type Outcome int

const (
	// OutcomeFetched means at least one value came back.
	OutcomeFetched Outcome = iota
	// OutcomeEmpty means the fetch completed with nothing to report.
	OutcomeEmpty
	// OutcomeFailed means the fetch never completed.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeFetched:
		return "fetched"
	case OutcomeEmpty:
		return "empty"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result is the value of one enrichment fetch plus how it ended. Value is
// never nil for map results, so callers can treat every outcome alike.
type Result[T any] struct {
	Value   T
	Outcome Outcome
	Err     error
}

// run executes fetch, converting a panic into a failed result, and records
// the outcome.
func run[T any](ctx context.Context, category string, zero T, fetch func() Result[T]) Result[T] {
	var res Result[T]
	if err := safego.Do(func() error {
		res = fetch()
		return nil
	}); err != nil {
		res = Result[T]{Value: zero, Outcome: OutcomeFailed, Err: err}
	}

	telemetry.EnrichmentFetchesTotal.WithLabelValues(category, res.Outcome.String()).Inc()
	if res.Outcome == OutcomeFailed {
		slog.Warn("enrichment fetch failed",
			"request_id", middleware.RequestIDFromContext(ctx),
			"category", category,
			"outcome", res.Outcome.String(),
			"error", res.Err,
		)
	}
	return res
}

// userPath addresses a user by id, or the signed-in user when id is empty.
func userPath(id string) string {
	if id == "" {
		return "/me"
	}
	return "/users/" + url.PathEscape(id)
}

func selectQuery() string {
	return "?$select=" + strings.Join(profileFields, ",")
}

func profileRequest(id string) graph.Request {
	return graph.Request{
		Key: graph.Key{Kind: graph.KindProfile, ID: id},
		URL: userPath(id) + selectQuery(),
	}
}

func directReportsRequest(id string) graph.Request {
	return graph.Request{
		Key: graph.Key{Kind: graph.KindDirectReports, ID: id},
		URL: userPath(id) + "/directReports" + selectQuery(),
	}
}

func peopleRequest(id string, top int) graph.Request {
	return graph.Request{
		Key: graph.Key{Kind: graph.KindPeople, ID: id},
		URL: userPath(id) + "/people?$top=" + strconv.Itoa(top),
	}
}

func presenceRequest(ids []string) graph.Request {
	return graph.Request{
		Key:    graph.Key{Kind: graph.KindPresence},
		Method: http.MethodPost,
		URL:    "/communications/getPresencesByUserId",
		Body:   map[string][]string{"ids": ids},
	}
}

func timezoneRequest(id string) graph.Request {
	return graph.Request{
		Key: graph.Key{Kind: graph.KindTimezone, ID: id},
		URL: userPath(id) + "/mailboxSettings/timeZone",
	}
}

type profileList struct {
	Value []Profile `json:"value"`
}

type presenceList struct {
	Value []struct {
		ID           string `json:"id"`
		Availability string `json:"availability"`
	} `json:"value"`
}

type timezoneValue struct {
	Value string `json:"value"`
}

type peopleList struct {
	Value []struct {
		ID         string `json:"id"`
		PersonType struct {
			Class    string `json:"class"`
			Subclass string `json:"subclass"`
		} `json:"personType"`
	} `json:"value"`
}

// usersOnly drops non-user directory objects and repeated ids, keeping the
// first occurrence.
func usersOnly(in []Profile) []Profile {
	seen := make(map[string]struct{}, len(in))
	out := make([]Profile, 0, len(in))
	for _, p := range in {
		if p.ID == "" || !p.isUser() {
			continue
		}
		if _, dup := seen[p.ID]; dup {
			continue
		}
		seen[p.ID] = struct{}{}
		out = append(out, p)
	}
	return out
}

// completed maps a batch error and the number of values decoded to an
// outcome. A partial round that still produced values counts as fetched.
func completed(err error, n int) Outcome {
	switch {
	case n > 0:
		return OutcomeFetched
	case err != nil:
		return OutcomeFailed
	default:
		return OutcomeEmpty
	}
}

// fetchProfiles looks up one profile per id in a single round.
func fetchProfiles(ctx context.Context, dir Directory, ids []string) Result[map[string]Profile] {
	out := make(map[string]Profile, len(ids))
	if len(ids) == 0 {
		return Result[map[string]Profile]{Value: out, Outcome: OutcomeEmpty}
	}

	reqs := make([]graph.Request, 0, len(ids))
	for _, id := range ids {
		reqs = append(reqs, profileRequest(id))
	}
	resps, err := dir.Batch(ctx, reqs)
	for _, id := range ids {
		resp, ok := resps.Success(graph.Key{Kind: graph.KindProfile, ID: id})
		if !ok {
			continue
		}
		var p Profile
		if decodeErr := resp.Decode(&p); decodeErr != nil || p.ID == "" {
			continue
		}
		out[id] = p
	}
	return Result[map[string]Profile]{Value: out, Outcome: completed(err, len(out)), Err: err}
}

// fetchPresence looks up availability for all ids with one sub-request.
func fetchPresence(ctx context.Context, dir Directory, ids []string) Result[map[string]string] {
	out := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return Result[map[string]string]{Value: out, Outcome: OutcomeEmpty}
	}

	req := presenceRequest(ids)
	resps, err := dir.Batch(ctx, []graph.Request{req})
	if resp, ok := resps.Success(req.Key); ok {
		var list presenceList
		if decodeErr := resp.Decode(&list); decodeErr != nil {
			err = decodeErr
		}
		for _, p := range list.Value {
			if p.ID != "" && p.Availability != "" {
				out[p.ID] = p.Availability
			}
		}
	} else if resp, present := resps[req.Key]; present && err == nil {
		err = graph.NewAPIError(resp.Status, "presence lookup returned "+strconv.Itoa(resp.Status), nil)
	}
	return Result[map[string]string]{Value: out, Outcome: completed(err, len(out)), Err: err}
}

// fetchTimezones looks up the mailbox time zone of every id, one sub-request
// per id. Values are Windows zone names.
func fetchTimezones(ctx context.Context, dir Directory, ids []string) Result[map[string]string] {
	out := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return Result[map[string]string]{Value: out, Outcome: OutcomeEmpty}
	}

	reqs := make([]graph.Request, 0, len(ids))
	for _, id := range ids {
		reqs = append(reqs, timezoneRequest(id))
	}
	resps, err := dir.Batch(ctx, reqs)
	for _, id := range ids {
		resp, ok := resps.Success(graph.Key{Kind: graph.KindTimezone, ID: id})
		if !ok {
			continue
		}
		var tz timezoneValue
		if resp.Decode(&tz) == nil && tz.Value != "" {
			out[id] = tz.Value
		}
	}
	return Result[map[string]string]{Value: out, Outcome: completed(err, len(out)), Err: err}
}
