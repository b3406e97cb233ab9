package roster

import (
	"context"
	"errors"
	"log/slog"

	"github.com/team-roster/team-roster/internal/graph"
	"github.com/team-roster/team-roster/internal/middleware"
)

const (
	personClassPerson          = "Person"
	personSubclassOrganization = "OrganizationUser"
)

// Resolution is the team found for a primary user.
type Resolution struct {
	// Core is the resolved team, primary member first.
	Core []Profile
	// PeerIDs are organization users the primary user works with, when
	// requested. They may overlap Core.
	PeerIDs []string
}

// Resolver decides who belongs to a user's team.
type Resolver struct {
	dir       Directory
	peerLimit int
}

// NewResolver creates a resolver reading from dir. peerLimit caps the people
// list when peers are requested.
func NewResolver(dir Directory, peerLimit int) *Resolver {
	if peerLimit <= 0 {
		peerLimit = 10
	}
	return &Resolver{dir: dir, peerLimit: peerLimit}
}

// ResolveCoreTeam returns the user's core team, primary member first. See
// ResolveTeam.
func (r *Resolver) ResolveCoreTeam(ctx context.Context, userID string) []Profile {
	return r.ResolveTeam(ctx, userID, false).Core
}

// ResolveTeam resolves the team of userID (the signed-in user when empty).
// Managers get themselves plus their direct reports. Anyone else gets their
// manager plus the manager's direct reports. When the manager cannot be
// determined the user alone is returned, or nothing if the user's own
// profile could not be read.
func (r *Resolver) ResolveTeam(ctx context.Context, userID string, includePeers bool) Resolution {
	reqs := []graph.Request{profileRequest(userID), directReportsRequest(userID)}
	if includePeers {
		reqs = append(reqs, peopleRequest(userID, r.peerLimit))
	}

	resps, err := r.dir.Batch(ctx, reqs)
	if err != nil {
		slog.Warn("team resolution batch failed",
			"request_id", middleware.RequestIDFromContext(ctx),
			"user_id", userID,
			"error", err,
		)
	}

	var team []Profile
	var self Profile
	if resp, ok := resps.Success(reqs[0].Key); ok && resp.Decode(&self) == nil && self.ID != "" {
		team = append(team, self)
	}
	if resp, ok := resps.Success(reqs[1].Key); ok {
		var reports profileList
		if resp.Decode(&reports) == nil {
			team = usersOnly(append(team, reports.Value...))
		}
	}

	var res Resolution
	if includePeers {
		res.PeerIDs = peerIDs(resps, reqs[2].Key, self.ID)
	}

	if len(team) > 1 {
		res.Core = team
		return res
	}

	if managerTeam := r.managerTeam(ctx, userID); len(managerTeam) > 0 {
		res.Core = managerTeam
		return res
	}
	res.Core = team
	return res
}

// managerTeam returns {manager, manager's direct reports}, or nil when the
// user has no manager or any lookup fails.
func (r *Resolver) managerTeam(ctx context.Context, userID string) []Profile {
	var manager Profile
	if err := r.dir.Get(ctx, userPath(userID)+"/manager"+selectQuery(), &manager); err != nil {
		if errors.Is(err, graph.ErrNotFound) {
			slog.Debug("user has no manager", "request_id", middleware.RequestIDFromContext(ctx), "user_id", userID)
		} else {
			slog.Warn("manager lookup failed", "request_id", middleware.RequestIDFromContext(ctx), "user_id", userID, "error", err)
		}
		return nil
	}
	if manager.ID == "" || !manager.isUser() {
		return nil
	}

	var reports profileList
	if err := r.dir.Get(ctx, userPath(manager.ID)+"/directReports"+selectQuery(), &reports); err != nil {
		slog.Warn("manager direct reports lookup failed", "request_id", middleware.RequestIDFromContext(ctx), "manager_id", manager.ID, "error", err)
		return nil
	}
	return usersOnly(append([]Profile{manager}, reports.Value...))
}

// peerIDs extracts organization users from the people response, skipping
// the user themself.
func peerIDs(resps graph.Responses, key graph.Key, selfID string) []string {
	resp, ok := resps.Success(key)
	if !ok {
		return nil
	}
	var people peopleList
	if resp.Decode(&people) != nil {
		return nil
	}

	var ids []string
	for _, p := range people.Value {
		if p.ID == "" || p.ID == selfID {
			continue
		}
		if p.PersonType.Class != personClassPerson || p.PersonType.Subclass != personSubclassOrganization {
			continue
		}
		ids = append(ids, p.ID)
	}
	return ids
}
