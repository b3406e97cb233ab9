// Package roster resolves a user's team from the directory and enriches it
// with presence and mailbox time zone data.
package roster

import (
	"strings"
)

// profileFields are the user properties requested for every profile.
var profileFields = []string{
	"id", "givenName", "surname", "displayName", "mail", "userPrincipalName",
	"officeLocation", "city", "country", "jobTitle", "department",
}

const userODataType = "#microsoft.graph.user"

// Profile is a directory user as returned by Graph.
type Profile struct {
	ODataType         string `json:"@odata.type,omitempty"`
	ID                string `json:"id"`
	GivenName         string `json:"givenName"`
	Surname           string `json:"surname"`
	DisplayName       string `json:"displayName"`
	Mail              string `json:"mail"`
	UserPrincipalName string `json:"userPrincipalName"`
	OfficeLocation    string `json:"officeLocation"`
	City              string `json:"city"`
	Country           string `json:"country"`
	JobTitle          string `json:"jobTitle"`
	Department        string `json:"department"`
}

// isUser reports whether the directory object is a user. Untyped objects
// come from user-only endpoints and count as users.
func (p Profile) isUser() bool {
	return p.ODataType == "" || p.ODataType == userODataType
}

// Member is one roster entry as served to the UI.
type Member struct {
	ID                string  `json:"id"`
	Name              *string `json:"name"`
	Mail              *string `json:"mail"`
	UserPrincipalName *string `json:"userPrincipalName"`
	Location          *string `json:"location"`
	JobTitle          *string `json:"jobTitle"`
	Department        *string `json:"department,omitempty"`
	Presence          *string `json:"presence"`
	TimeZone          string  `json:"timeZone"`
	Photo             string  `json:"photo"`
	IsCoreTeamMember  bool    `json:"isCoreTeamMember"`
}

// displayName is "given surname" when both parts exist, else the directory
// display name, else nil.
func (p Profile) displayName() *string {
	if p.GivenName != "" && p.Surname != "" {
		return ptr(p.GivenName + " " + p.Surname)
	}
	return optional(p.DisplayName)
}

// location joins office, city and country, skipping blanks.
func (p Profile) location() *string {
	parts := make([]string, 0, 3)
	for _, s := range []string{p.OfficeLocation, p.City, p.Country} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return optional(strings.Join(parts, ", "))
}

func ptr(s string) *string { return &s }

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
