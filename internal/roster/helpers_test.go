package roster

import (
	"encoding/json"
	"net/http"
	"sync"
	"testing"

	"github.com/team-roster/team-roster/internal/graph"
	"github.com/team-roster/team-roster/internal/graph/graphtest"
)

// directory is a fake tenant served by graphtest.
type directory struct {
	*graphtest.Server

	mu       sync.Mutex
	presence map[string]string
}

func newDirectory(t *testing.T) *directory {
	t.Helper()
	d := &directory{Server: graphtest.NewServer(), presence: map[string]string{}}
	t.Cleanup(d.Close)

	d.Handle("POST", "/communications/getPresencesByUserId", func(body json.RawMessage) (int, any) {
		var in struct {
			IDs []string `json:"ids"`
		}
		if err := json.Unmarshal(body, &in); err != nil {
			return http.StatusBadRequest, nil
		}
		d.mu.Lock()
		defer d.mu.Unlock()
		value := []map[string]string{}
		for _, id := range in.IDs {
			if a, ok := d.presence[id]; ok {
				value = append(value, map[string]string{"id": id, "availability": a})
			}
		}
		return http.StatusOK, map[string]any{"value": value}
	})
	return d
}

func (d *directory) client() *graph.Client {
	return graph.NewClient(d.Server.Client(), d.URL, 20)
}

func user(id, given, surname string) Profile {
	return Profile{
		ID:                id,
		GivenName:         given,
		Surname:           surname,
		DisplayName:       given + " " + surname,
		Mail:              id + "@contoso.com",
		UserPrincipalName: id + "@contoso.com",
	}
}

// addUser registers the profile under /users/{id}.
func (d *directory) addUser(p Profile) {
	d.HandleJSON("GET", userPath(p.ID)+selectQuery(), http.StatusOK, p)
}

func (d *directory) addMe(p Profile) {
	d.HandleJSON("GET", "/me"+selectQuery(), http.StatusOK, p)
}

func (d *directory) addReports(id string, reports ...Profile) {
	if reports == nil {
		reports = []Profile{}
	}
	d.HandleJSON("GET", userPath(id)+"/directReports"+selectQuery(), http.StatusOK, map[string]any{"value": reports})
}

func (d *directory) addManager(id string, manager Profile) {
	d.HandleJSON("GET", userPath(id)+"/manager"+selectQuery(), http.StatusOK, manager)
}

func (d *directory) addTimezone(id, windowsZone string) {
	d.HandleJSON("GET", userPath(id)+"/mailboxSettings/timeZone", http.StatusOK, map[string]string{"value": windowsZone})
}

func (d *directory) setPresence(id, availability string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.presence[id] = availability
}

type person struct {
	ID         string            `json:"id"`
	PersonType map[string]string `json:"personType"`
}

func (d *directory) addPeople(id string, top int, people ...person) {
	d.HandleJSON("GET", peopleRequest(id, top).URL, http.StatusOK, map[string]any{"value": people})
}

// staticClients hands out the same client for every credential context and
// records what was asked for.
type staticClients struct {
	client *graph.Client
	err    error

	mu    sync.Mutex
	asked []graph.Credentials
}

func (s *staticClients) Client(creds graph.Credentials) (*graph.Client, error) {
	s.mu.Lock()
	s.asked = append(s.asked, creds)
	s.mu.Unlock()
	return s.client, s.err
}

type panickingClients struct{}

func (panickingClients) Client(graph.Credentials) (*graph.Client, error) {
	panic("directory exploded")
}

func memberIDs(members []Member) []string {
	ids := make([]string, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.ID)
	}
	return ids
}

func byMemberID(members []Member) map[string]Member {
	out := make(map[string]Member, len(members))
	for _, m := range members {
		out[m.ID] = m
	}
	return out
}
