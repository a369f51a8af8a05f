// Package request implements the state of one expense request form: the
// roster (unassigned pool and selected crew) and the expense grid.
//
// Operations that reference an unknown person or row are silent no-ops.
// Every change of crew membership, crew roles, or zone re-derives the grid
// values from the zone-default policy through Reconcile. Reconcile
// overwrites values typed in by hand.
package request

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/vbonduro/viatico/internal/catalog"
	"github.com/vbonduro/viatico/internal/domain"
	"github.com/vbonduro/viatico/internal/policy"
)

// ErrStaleState is returned by Restore when a saved state no longer matches
// the personnel of the catalog it is restored against.
var ErrStaleState = errors.New("request state does not match catalog")

type Request struct {
	cat   catalog.Catalog
	state domain.RequestState
	newID func() string
}

// New starts an empty request in Zona 1 with every catalog person in the pool.
func New(cat catalog.Catalog) *Request {
	pool := make([]domain.Person, len(cat.Personnel))
	for i, p := range cat.Personnel {
		pool[i] = clonePerson(p)
	}
	r := &Request{
		cat:   cat,
		state: domain.RequestState{Zone: domain.Zone1, Pool: pool},
		newID: uuid.NewString,
	}
	r.sortPool()
	return r
}

// Restore rebuilds a request from a saved state.
func Restore(cat catalog.Catalog, st domain.RequestState) (*Request, error) {
	if !st.Zone.Valid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownZone, st.Zone)
	}

	want := make(map[int64]bool, len(cat.Personnel))
	for _, p := range cat.Personnel {
		want[p.ID] = true
	}
	seen := make(map[int64]bool, len(want))
	mark := func(id int64) error {
		if !want[id] || seen[id] {
			return fmt.Errorf("%w: person %d", ErrStaleState, id)
		}
		seen[id] = true
		return nil
	}
	for _, p := range st.Pool {
		if err := mark(p.ID); err != nil {
			return nil, err
		}
	}
	for _, m := range st.Crew {
		if err := mark(m.ID); err != nil {
			return nil, err
		}
	}
	if len(seen) != len(want) {
		return nil, fmt.Errorf("%w: %d of %d persons present", ErrStaleState, len(seen), len(want))
	}

	return &Request{cat: cat, state: cloneState(st), newID: uuid.NewString}, nil
}

// State returns a copy of the current state.
func (r *Request) State() domain.RequestState {
	return cloneState(r.state)
}

// AddToCrew moves a person from the pool to the crew and gives them the
// role at position len(crew) mod len(roles) of the role catalog. The first
// person to join an empty grid also seeds one row per catalog expense type.
func (r *Request) AddToCrew(personID int64) error {
	idx := slices.IndexFunc(r.state.Pool, func(p domain.Person) bool { return p.ID == personID })
	if idx < 0 || r.crewIndex(personID) >= 0 {
		return nil
	}

	person := r.state.Pool[idx]
	role := r.cat.Roles[len(r.state.Crew)%len(r.cat.Roles)]
	r.state.Pool = slices.Delete(r.state.Pool, idx, idx+1)
	r.state.Crew = append(r.state.Crew, domain.CrewMember{
		Person:        person,
		SelectedRoles: []string{role},
	})

	if len(r.state.Rows) == 0 {
		for _, t := range r.cat.ExpenseTypes {
			r.state.Rows = append(r.state.Rows, r.newRow(t))
		}
	}
	return r.Reconcile()
}

// RemoveFromCrew returns a crew member to the pool, which stays sorted by name.
func (r *Request) RemoveFromCrew(personID int64) error {
	idx := r.crewIndex(personID)
	if idx < 0 {
		return nil
	}

	member := r.state.Crew[idx]
	r.state.Crew = slices.Delete(r.state.Crew, idx, idx+1)
	r.state.Pool = append(r.state.Pool, member.Person)
	r.sortPool()
	for _, row := range r.state.Rows {
		delete(row.Values, personID)
	}
	return r.Reconcile()
}

// SetRoles replaces a crew member's selected roles. Roles outside the
// catalog and repeated roles are dropped.
func (r *Request) SetRoles(personID int64, roles []string) error {
	idx := r.crewIndex(personID)
	if idx < 0 {
		return nil
	}

	selected := make([]string, 0, len(roles))
	for _, role := range roles {
		if r.cat.HasRole(role) && !slices.Contains(selected, role) {
			selected = append(selected, role)
		}
	}
	r.state.Crew[idx].SelectedRoles = selected
	return r.Reconcile()
}

// SetZone changes the zone. An unknown zone leaves the request untouched.
func (r *Request) SetZone(zone domain.Zone) error {
	if !zone.Valid() {
		return fmt.Errorf("%w: %q", domain.ErrUnknownZone, zone)
	}
	r.state.Zone = zone
	return r.Reconcile()
}

// Reconcile sets every cell to the zone/role default and drops cells of
// persons no longer in the crew.
func (r *Request) Reconcile() error {
	defaults := make([]policy.Defaults, len(r.state.Crew))
	for i, m := range r.state.Crew {
		d, err := policy.DefaultsFor(r.state.Zone, m.PrimaryRole())
		if err != nil {
			return fmt.Errorf("failed to derive defaults for %s: %w", m.Name, err)
		}
		defaults[i] = d
	}

	for i := range r.state.Rows {
		row := &r.state.Rows[i]
		values := make(map[int64]int64, len(r.state.Crew))
		for j, m := range r.state.Crew {
			values[m.ID] = defaults[j].Amount(row.Type)
		}
		row.Values = values
	}
	return nil
}

// AddRow appends a row typed like the last row (or the first catalog type
// when the grid is empty) with a zero for each crew member.
func (r *Request) AddRow() {
	t := r.cat.ExpenseTypes[0]
	if n := len(r.state.Rows); n > 0 {
		t = r.state.Rows[n-1].Type
	}
	r.state.Rows = append(r.state.Rows, r.newRow(t))
}

func (r *Request) RemoveRow(rowID string) {
	if idx := r.rowIndex(rowID); idx >= 0 {
		r.state.Rows = slices.Delete(r.state.Rows, idx, idx+1)
	}
}

// SetRowType relabels a row. Types outside the catalog are ignored.
func (r *Request) SetRowType(rowID, expenseType string) {
	idx := r.rowIndex(rowID)
	if idx < 0 || !r.cat.HasExpenseType(expenseType) {
		return
	}
	r.state.Rows[idx].Type = expenseType
}

// SetValue sets a single cell. Negative amounts and persons outside the crew
// are ignored.
func (r *Request) SetValue(rowID string, personID int64, amount int64) {
	idx := r.rowIndex(rowID)
	if idx < 0 || amount < 0 || r.crewIndex(personID) < 0 {
		return
	}
	r.state.Rows[idx].Values[personID] = amount
}

// RepeatFirstValue copies the first non-zero value of the row, in crew
// order, into every cell of that row.
func (r *Request) RepeatFirstValue(rowID string) {
	idx := r.rowIndex(rowID)
	if idx < 0 {
		return
	}

	row := r.state.Rows[idx]
	var first int64
	for _, m := range r.state.Crew {
		if v := row.Values[m.ID]; v != 0 {
			first = v
			break
		}
	}
	if first == 0 {
		return
	}
	for _, m := range r.state.Crew {
		row.Values[m.ID] = first
	}
}

// ResetRow sets every cell of the row to zero.
func (r *Request) ResetRow(rowID string) {
	idx := r.rowIndex(rowID)
	if idx < 0 {
		return
	}
	for _, m := range r.state.Crew {
		r.state.Rows[idx].Values[m.ID] = 0
	}
}

// SanitizeAmount keeps only the digits of raw and parses them. Empty input
// is zero; values beyond int64 saturate.
func SanitizeAmount(raw string) int64 {
	var digits strings.Builder
	for _, c := range raw {
		if c >= '0' && c <= '9' {
			digits.WriteRune(c)
		}
	}
	if digits.Len() == 0 {
		return 0
	}
	n, err := strconv.ParseInt(digits.String(), 10, 64)
	if err != nil {
		return math.MaxInt64
	}
	return n
}

func (r *Request) newRow(expenseType string) domain.ExpenseRow {
	values := make(map[int64]int64, len(r.state.Crew))
	for _, m := range r.state.Crew {
		values[m.ID] = 0
	}
	return domain.ExpenseRow{ID: r.newID(), Type: expenseType, Values: values}
}

func (r *Request) crewIndex(personID int64) int {
	return slices.IndexFunc(r.state.Crew, func(m domain.CrewMember) bool { return m.ID == personID })
}

func (r *Request) rowIndex(rowID string) int {
	return slices.IndexFunc(r.state.Rows, func(row domain.ExpenseRow) bool { return row.ID == rowID })
}

func (r *Request) sortPool() {
	c := collate.New(language.Spanish)
	slices.SortStableFunc(r.state.Pool, func(a, b domain.Person) int {
		return c.CompareString(a.Name, b.Name)
	})
}

func clonePerson(p domain.Person) domain.Person {
	p.Roles = slices.Clone(p.Roles)
	return p
}

func cloneState(st domain.RequestState) domain.RequestState {
	out := domain.RequestState{Zone: st.Zone}
	if st.Pool != nil {
		out.Pool = make([]domain.Person, len(st.Pool))
		for i, p := range st.Pool {
			out.Pool[i] = clonePerson(p)
		}
	}
	if st.Crew != nil {
		out.Crew = make([]domain.CrewMember, len(st.Crew))
		for i, m := range st.Crew {
			out.Crew[i] = domain.CrewMember{
				Person:        clonePerson(m.Person),
				SelectedRoles: slices.Clone(m.SelectedRoles),
			}
		}
	}
	if st.Rows != nil {
		out.Rows = make([]domain.ExpenseRow, len(st.Rows))
		for i, row := range st.Rows {
			values := make(map[int64]int64, len(row.Values))
			for k, v := range row.Values {
				values[k] = v
			}
			out.Rows[i] = domain.ExpenseRow{ID: row.ID, Type: row.Type, Values: values}
		}
	}
	return out
}
