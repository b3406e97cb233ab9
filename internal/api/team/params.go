// params.go extracts roster request parameters from either a JSON body (POST)
// or the query string (GET).
package team

import (
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"github.com/team-roster/team-roster/internal/auth"
)

// Params holds the inputs accepted by the roster endpoints.
type Params struct {
	UserID       string `json:"userId" form:"userId"`
	OtherUserIDs string `json:"otherUserIds" form:"otherUserIds"`
	UserIDs      string `json:"userIds" form:"userIds"`
	AccessToken  string `json:"accessToken" form:"accessToken"`
	IncludePeers *bool  `json:"includePeers" form:"includePeers"`

	// Bearer is the caller's own token from the Authorization header.
	Bearer string `json:"-" form:"-"`
}

// bindParams reads Params from the request. An empty POST body is treated as
// no parameters.
func bindParams(c *gin.Context) (Params, error) {
	var p Params
	var err error
	if c.Request.Method == http.MethodPost {
		err = c.ShouldBindJSON(&p)
		if errors.Is(err, io.EOF) {
			err = nil
		}
	} else {
		err = bindQuery(c.Request.URL.RawQuery, &p)
	}
	if err != nil {
		return Params{}, err
	}
	p.Bearer = auth.BearerToken(c.GetHeader("Authorization"))
	return p, nil
}

// bindQuery decodes a query string into p. Id lists are ";"-separated, and
// url.ParseQuery rejects pairs with a bare ";", so semicolons are escaped
// before parsing.
func bindQuery(rawQuery string, p *Params) error {
	values, err := url.ParseQuery(strings.ReplaceAll(rawQuery, ";", "%3B"))
	if err != nil {
		return err
	}
	return binding.MapFormWithTag(p, values, "form")
}

// includePeers returns the explicit request value, or def when absent.
func (p Params) includePeers(def bool) bool {
	if p.IncludePeers == nil {
		return def
	}
	return *p.IncludePeers
}
