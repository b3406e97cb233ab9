package roster

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/team-roster/team-roster/internal/config"
	"github.com/team-roster/team-roster/internal/graph"
	"github.com/team-roster/team-roster/internal/telemetry"
)

var (
	// ErrNoData means the directory produced nothing usable for the request,
	// typically because the supplied ids do not exist.
	ErrNoData = errors.New("no usable data")
	// ErrMissingUser means a user id is required but was not supplied.
	ErrMissingUser = errors.New("user id is required")
	// ErrInternal wraps unexpected failures such as recovered panics.
	ErrInternal = errors.New("internal error")
)

// ClientSource returns a Graph client acting with the given credentials.
type ClientSource interface {
	Client(creds graph.Credentials) (*graph.Client, error)
}

// RosterRequest describes one roster lookup.
type RosterRequest struct {
	// UserID is the primary user; empty means the signed-in user.
	UserID string
	// ExtraIDs is a ";"-separated list of additional users.
	ExtraIDs string
	// IncludePeers adds the people the primary user works with.
	IncludePeers bool
}

// Aggregator builds team rosters and presence maps.
type Aggregator struct {
	clients       ClientSource
	photoTemplate string
	peerLimit     int
}

// NewAggregator creates an aggregator.
func NewAggregator(clients ClientSource, cfg config.RosterConfig) *Aggregator {
	return &Aggregator{
		clients:       clients,
		photoTemplate: cfg.PhotoURLTemplate,
		peerLimit:     cfg.PeerLimit,
	}
}

// ParseIDs splits a ";"-separated id list, trimming blanks and dropping empty
// and repeated entries.
func ParseIDs(s string) []string {
	ids := []string{}
	seen := make(map[string]struct{})
	for _, part := range strings.Split(s, ";") {
		id := strings.TrimSpace(part)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}

// recoverInternal turns a panic into an ErrInternal carrying its message.
func recoverInternal(err *error) {
	if r := recover(); r != nil {
		slog.Error("recovered panic while building roster", "panic", r)
		*err = fmt.Errorf("%w: %v", ErrInternal, r)
	}
}

// GetTeamRoster resolves the team of req.UserID, merges the extra ids and
// enriches every member. An empty roster is ErrNoData.
func (a *Aggregator) GetTeamRoster(ctx context.Context, creds graph.Credentials, req RosterRequest) (members []Member, err error) {
	defer recoverInternal(&err)

	if req.UserID == "" && !creds.UserScoped() {
		return nil, ErrMissingUser
	}

	dir, err := a.clients.Client(creds)
	if err != nil {
		return nil, fmt.Errorf("failed to create graph client: %w", err)
	}

	start := time.Now()
	resolution := NewResolver(dir, a.peerLimit).ResolveTeam(ctx, req.UserID, req.IncludePeers)

	extras := ParseIDs(req.ExtraIDs)
	extras = append(extras, resolution.PeerIDs...)

	members = NewEnricher(dir, a.photoTemplate).Enrich(ctx, resolution.Core, extras)
	telemetry.RosterBuildDuration.Observe(time.Since(start).Seconds())

	if len(members) == 0 {
		return nil, ErrNoData
	}
	telemetry.RosterMembers.Observe(float64(len(members)))

	slog.Debug("roster built",
		"user_id", req.UserID,
		"credential_mode", creds.Mode.String(),
		"core", len(resolution.Core),
		"members", len(members),
	)
	return members, nil
}

// GetPresence returns availability by id for a ";"-separated id list. Ids
// without presence are absent from the map. Nothing found is ErrNoData.
func (a *Aggregator) GetPresence(ctx context.Context, creds graph.Credentials, ids string) (presence map[string]string, err error) {
	defer recoverInternal(&err)

	parsed := ParseIDs(ids)
	if len(parsed) == 0 {
		return nil, ErrNoData
	}

	dir, err := a.clients.Client(creds)
	if err != nil {
		return nil, fmt.Errorf("failed to create graph client: %w", err)
	}

	res := run(ctx, "presence", map[string]string{}, func() Result[map[string]string] {
		return fetchPresence(ctx, dir, parsed)
	})
	if len(res.Value) == 0 {
		return nil, ErrNoData
	}
	return res.Value, nil
}

// Matcher selects a member.
type Matcher func(Member) bool

// ByID matches the member with the given directory id.
func ByID(id string) Matcher {
	return func(m Member) bool {
		return id != "" && m.ID == id
	}
}

// ByPrincipalName matches the member with the given principal name,
// ignoring case.
func ByPrincipalName(upn string) Matcher {
	return func(m Member) bool {
		return upn != "" && m.UserPrincipalName != nil && strings.EqualFold(*m.UserPrincipalName, upn)
	}
}

// SortSelfFirst moves the first member accepted by match to the front. The
// others keep their relative order. members is reordered in place and
// returned.
func SortSelfFirst(members []Member, match Matcher) []Member {
	for i, m := range members {
		if !match(m) {
			continue
		}
		if i > 0 {
			copy(members[1:i+1], members[:i])
			members[0] = m
		}
		break
	}
	return members
}
