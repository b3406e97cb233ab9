// Package team implements the HTTP handlers for team rosters and presence.
package team

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/team-roster/team-roster/internal/auth"
	"github.com/team-roster/team-roster/internal/config"
	"github.com/team-roster/team-roster/internal/graph"
	"github.com/team-roster/team-roster/internal/middleware"
	"github.com/team-roster/team-roster/internal/roster"
)

const (
	msgNoTeamData     = "No valid team members data available, some requests may have failed."
	msgNoPresenceData = "No valid presence data available, some requests may have failed."
	msgInvalidRequest = "The request is invalid."
)

// Roster is the aggregation surface the handlers depend on.
type Roster interface {
	GetTeamRoster(ctx context.Context, creds graph.Credentials, req roster.RosterRequest) ([]roster.Member, error)
	GetPresence(ctx context.Context, creds graph.Credentials, ids string) (map[string]string, error)
}

// Handler serves the roster endpoints.
type Handler struct {
	roster Roster
	cfg    config.RosterConfig
}

// NewHandler creates a new team handler
func NewHandler(r Roster, cfg config.RosterConfig) *Handler {
	return &Handler{roster: r, cfg: cfg}
}

// Envelope is the response shape of GetTeamDetails.
type Envelope struct {
	Status int           `json:"status"`
	Error  EnvelopeError `json:"error"`
	Data   *EnvelopeData `json:"data"`
}

// EnvelopeError describes a failed GetTeamDetails call.
type EnvelopeError struct {
	Exists  bool    `json:"exists"`
	Code    *string `json:"code"`
	Message *string `json:"message"`
}

// EnvelopeData carries the team on success.
type EnvelopeData struct {
	Team Team `json:"team"`
}

// Team is a named roster.
type Team struct {
	Name    string          `json:"name"`
	Members []roster.Member `json:"members"`
}

func failure(status int, code, message string) Envelope {
	return Envelope{
		Status: status,
		Error:  EnvelopeError{Exists: true, Code: &code, Message: &message},
	}
}

// unauthorized reports whether err stems from missing caller credentials.
func unauthorized(err error) bool {
	return errors.Is(err, roster.ErrMissingUser) ||
		errors.Is(err, graph.ErrMissingAssertion) ||
		errors.Is(err, graph.ErrMissingAccessToken)
}

func logFailure(c *gin.Context, msg string, err error) {
	slog.Error(msg,
		"request_id", c.GetString(middleware.RequestIDKey),
		"path", c.FullPath(),
		"error", err,
	)
}

// GetMyTeamMembers returns the roster of the signed-in user, or of userId when
// given, with the caller listed first.
func (h *Handler) GetMyTeamMembers(c *gin.Context) {
	p, err := bindParams(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request parameters: " + err.Error()})
		return
	}

	creds := graph.SelectCredentials(p.Bearer, p.AccessToken)
	members, err := h.roster.GetTeamRoster(c.Request.Context(), creds, roster.RosterRequest{
		UserID:       p.UserID,
		ExtraIDs:     p.OtherUserIDs,
		IncludePeers: p.includePeers(h.cfg.IncludePeers),
	})
	switch {
	case err == nil:
	case unauthorized(err):
		c.JSON(http.StatusUnauthorized, gin.H{"message": "A user token or userId is required"})
		return
	case errors.Is(err, roster.ErrNoData):
		c.JSON(http.StatusBadRequest, gin.H{"message": msgNoTeamData})
		return
	default:
		logFailure(c, "failed to build team roster", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Error fetching direct reports: " + err.Error()})
		return
	}

	upn := auth.PrincipalName(p.Bearer)
	if upn == "" {
		upn = auth.PrincipalName(p.AccessToken)
	}
	c.JSON(http.StatusOK, roster.SortSelfFirst(members, roster.ByPrincipalName(upn)))
}

// GetTeamDetails returns the roster of userId wrapped in a status envelope,
// using the application credential.
func (h *Handler) GetTeamDetails(c *gin.Context) {
	p, err := bindParams(c)
	if err != nil || p.UserID == "" {
		c.JSON(http.StatusBadRequest, failure(http.StatusBadRequest, "BadRequest", msgInvalidRequest))
		return
	}

	members, err := h.roster.GetTeamRoster(c.Request.Context(), graph.ApplicationCredentials(), roster.RosterRequest{
		UserID:       p.UserID,
		ExtraIDs:     p.OtherUserIDs,
		IncludePeers: p.includePeers(h.cfg.IncludePeers),
	})
	switch {
	case err == nil:
	case errors.Is(err, roster.ErrNoData):
		c.JSON(http.StatusBadRequest, failure(http.StatusBadRequest, "BadRequest", msgInvalidRequest))
		return
	default:
		logFailure(c, "failed to build team details", err)
		c.JSON(http.StatusInternalServerError, failure(http.StatusInternalServerError, "InternalServerError", err.Error()))
		return
	}

	members = roster.SortSelfFirst(members, roster.ByID(p.UserID))
	c.JSON(http.StatusOK, Envelope{
		Status: http.StatusOK,
		Data:   &EnvelopeData{Team: Team{Name: h.teamName(members), Members: members}},
	})
}

// teamName prefers the configured name, then one derived from the first member.
func (h *Handler) teamName(members []roster.Member) string {
	if h.cfg.TeamName != "" {
		return h.cfg.TeamName
	}
	if len(members) > 0 && members[0].Name != nil {
		return *members[0].Name + "'s team"
	}
	return "Team"
}

// GetUsersPresence returns availability keyed by user id for userIds.
func (h *Handler) GetUsersPresence(c *gin.Context) {
	p, err := bindParams(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request parameters: " + err.Error()})
		return
	}

	creds := graph.SelectCredentials(p.Bearer, p.AccessToken)
	presence, err := h.roster.GetPresence(c.Request.Context(), creds, p.UserIDs)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, presence)
	case unauthorized(err):
		c.JSON(http.StatusUnauthorized, gin.H{"message": "A user token is required"})
	case errors.Is(err, roster.ErrNoData):
		c.JSON(http.StatusBadRequest, gin.H{"message": msgNoPresenceData})
	default:
		logFailure(c, "failed to fetch presence", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Error fetching presence data: " + err.Error()})
	}
}
