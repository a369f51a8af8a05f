package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrUnknownZone is returned for a zone outside Zones.
var ErrUnknownZone = errors.New("unknown zone")

type Zone string

const (
	Zone1 Zone = "Zona 1"
	Zone2 Zone = "Zona 2"
	Zone3 Zone = "Zona 3"
)

// Zones lists the selectable zones in display order.
var Zones = []Zone{Zone1, Zone2, Zone3}

func (z Zone) Valid() bool {
	for _, known := range Zones {
		if z == known {
			return true
		}
	}
	return false
}

// ParseZone converts a form value into a Zone.
func ParseZone(s string) (Zone, error) {
	z := Zone(strings.TrimSpace(s))
	if !z.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownZone, s)
	}
	return z, nil
}

type Person struct {
	ID    int64    `json:"id" yaml:"id"`
	Name  string   `json:"name" yaml:"name"`
	Roles []string `json:"roles" yaml:"roles"`
}

// CrewMember is a Person assigned to the request together with the roles
// chosen for this trip.
type CrewMember struct {
	Person
	SelectedRoles []string `json:"selected_roles"`
}

// PrimaryRole is the role used for default values: the first selected role,
// or "" when none is selected.
func (m CrewMember) PrimaryRole() string {
	if len(m.SelectedRoles) == 0 {
		return ""
	}
	return m.SelectedRoles[0]
}

// RoleLabel joins the selected roles for display and export.
func (m CrewMember) RoleLabel() string {
	return strings.Join(m.SelectedRoles, ", ")
}

// ExpenseRow is one expense line; Values is keyed by crew member ID.
type ExpenseRow struct {
	ID     string          `json:"id"`
	Type   string          `json:"type"`
	Values map[int64]int64 `json:"values"`
}

// RequestState is the full, serialisable content of one request form.
type RequestState struct {
	Zone Zone         `json:"zone"`
	Pool []Person     `json:"pool"`
	Crew []CrewMember `json:"crew"`
	Rows []ExpenseRow `json:"rows"`
}

type Draft struct {
	ID        string
	State     RequestState
	UpdatedAt time.Time
}

type SubmissionStatus string

const (
	SubmissionSent   SubmissionStatus = "sent"
	SubmissionFailed SubmissionStatus = "failed"
)

type Submission struct {
	ID         int64
	DraftID    string
	Recipient  string
	Subject    string
	Status     SubmissionStatus
	Error      string
	ArchiveKey string
	CreatedAt  time.Time
}
