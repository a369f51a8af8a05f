// Package policy maps a zone and a crew member's role to the default amount
// of each expense type.
package policy

import (
	"fmt"

	"github.com/vbonduro/viatico/internal/domain"
)

// Expense types and roles with a non-zero default somewhere in the table.
const (
	Pension = "Pensión"
	Toll    = "Peaje"
	Fuel    = "Bencina"
	Lunch   = "Almuerzo"

	DriverRole = "Chofer"
)

const (
	boardRate = 42000
	tollRate  = 5000
)

// Defaults holds the default amount per expense type. Types missing from the
// map default to zero; use Amount to read it.
type Defaults map[string]int64

// Amount returns the default for expenseType, or 0 if the table has none.
func (d Defaults) Amount(expenseType string) int64 {
	return d[expenseType]
}

// DefaultsFor returns the default amounts for a crew member holding role in
// zone. Zones outside domain.Zones are rejected with domain.ErrUnknownZone.
func DefaultsFor(zone domain.Zone, role string) (Defaults, error) {
	switch zone {
	case domain.Zone1:
		return Defaults{Pension: 0, Toll: 0, Fuel: 0, Lunch: 0}, nil
	case domain.Zone2, domain.Zone3:
		toll := int64(0)
		if role == DriverRole {
			toll = tollRate
		}
		return Defaults{Pension: boardRate, Toll: toll, Fuel: 0, Lunch: 0}, nil
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownZone, zone)
	}
}
