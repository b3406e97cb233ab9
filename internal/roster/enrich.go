package roster

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/team-roster/team-roster/internal/timezone"
)

// DefaultPhotoURLTemplate derives a profile photo link from the principal name.
const DefaultPhotoURLTemplate = "/_layouts/15/userphoto.aspx?size=L&username=%s"

// Enricher turns resolved profiles and extra ids into roster members.
type Enricher struct {
	dir           Directory
	photoTemplate string
}

// NewEnricher creates an enricher reading from dir.
func NewEnricher(dir Directory, photoTemplate string) *Enricher {
	if photoTemplate == "" {
		photoTemplate = DefaultPhotoURLTemplate
	}
	return &Enricher{dir: dir, photoTemplate: photoTemplate}
}

// Enrich fetches extra profiles, presence and time zones concurrently and
// merges them. Core members come first in the order given, followed by the
// extras in the order given. Extras already in core, repeated extras and
// extras without a readable profile are left out.
func (e *Enricher) Enrich(ctx context.Context, core []Profile, extraIDs []string) []Member {
	coreIDs := make(map[string]struct{}, len(core))
	allIDs := make([]string, 0, len(core)+len(extraIDs))
	for _, p := range core {
		if _, dup := coreIDs[p.ID]; dup {
			continue
		}
		coreIDs[p.ID] = struct{}{}
		allIDs = append(allIDs, p.ID)
	}

	extras := make([]string, 0, len(extraIDs))
	seen := make(map[string]struct{}, len(extraIDs))
	for _, id := range extraIDs {
		if id == "" {
			continue
		}
		if _, inCore := coreIDs[id]; inCore {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		extras = append(extras, id)
	}
	allIDs = append(allIDs, extras...)

	var (
		profiles  Result[map[string]Profile]
		presence  Result[map[string]string]
		timezones Result[map[string]string]
		g         errgroup.Group
	)
	g.Go(func() error {
		profiles = run(ctx, "profile", map[string]Profile{}, func() Result[map[string]Profile] {
			return fetchProfiles(ctx, e.dir, extras)
		})
		return nil
	})
	g.Go(func() error {
		presence = run(ctx, "presence", map[string]string{}, func() Result[map[string]string] {
			return fetchPresence(ctx, e.dir, allIDs)
		})
		return nil
	})
	g.Go(func() error {
		timezones = run(ctx, "timezone", map[string]string{}, func() Result[map[string]string] {
			return fetchTimezones(ctx, e.dir, allIDs)
		})
		return nil
	})
	_ = g.Wait()

	members := make([]Member, 0, len(allIDs))
	emitted := make(map[string]struct{}, len(allIDs))
	for _, p := range core {
		if _, dup := emitted[p.ID]; dup {
			continue
		}
		emitted[p.ID] = struct{}{}
		members = append(members, e.member(p, presence.Value, timezones.Value, true))
	}
	for _, id := range extras {
		p, ok := profiles.Value[id]
		if !ok {
			continue
		}
		if _, dup := emitted[p.ID]; dup {
			continue
		}
		emitted[p.ID] = struct{}{}
		members = append(members, e.member(p, presence.Value, timezones.Value, false))
	}
	return members
}

func (e *Enricher) member(p Profile, presence, timezones map[string]string, core bool) Member {
	zone := timezones[p.ID]
	if zone == "" {
		zone = timezone.DefaultWindowsZone
	}
	return Member{
		ID:                p.ID,
		Name:              p.displayName(),
		Mail:              optional(p.Mail),
		UserPrincipalName: optional(p.UserPrincipalName),
		Location:          p.location(),
		JobTitle:          optional(p.JobTitle),
		Department:        optional(p.Department),
		Presence:          optional(presence[p.ID]),
		TimeZone:          timezone.Resolve(zone),
		Photo:             fmt.Sprintf(e.photoTemplate, p.UserPrincipalName),
		IsCoreTeamMember:  core,
	}
}
