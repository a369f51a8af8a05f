// Package catalog holds the seed data a request form starts from: the
// personnel list, the role catalog, and the expense-type catalog.
package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/vbonduro/viatico/internal/domain"
)

// Catalog validation errors.
var (
	ErrNoRoles           = errors.New("at least one role is required")
	ErrNoExpenseTypes    = errors.New("at least one expense type is required")
	ErrPersonMissingID   = errors.New("person id must be positive")
	ErrPersonMissingName = errors.New("person name is required")
	ErrDuplicatePerson   = errors.New("duplicate person")
	ErrDuplicateEntry    = errors.New("duplicate catalog entry")
	ErrUnsupportedFile   = errors.New("catalog file must be .yaml, .yml, .json or .jsonc")
)

type Catalog struct {
	Personnel    []domain.Person `yaml:"personnel" json:"personnel"`
	Roles        []string        `yaml:"roles" json:"roles"`
	ExpenseTypes []string        `yaml:"expense_types" json:"expense_types"`
}

// Default returns the built-in catalog used when no catalog file is configured.
func Default() Catalog {
	return Catalog{
		Personnel: []domain.Person{
			{ID: 1, Name: "Juan Pérez", Roles: []string{"Técnico", "Supervisor"}},
			{ID: 2, Name: "María García", Roles: []string{"Ingeniero"}},
			{ID: 3, Name: "Carlos Rodríguez", Roles: []string{"Asistente"}},
		},
		Roles:        []string{"Jefe de Grupo", "Montajista", "Ayudante", "Chofer"},
		ExpenseTypes: []string{"Pensión", "Peaje", "Bencina", "Almuerzo"},
	}
}

// Load reads a catalog file. YAML and JSON-with-comments are accepted,
// chosen by file extension.
func Load(path string) (Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("failed to read catalog file: %w", err)
	}

	var cat Catalog
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cat); err != nil {
			return Catalog{}, fmt.Errorf("failed to parse YAML catalog: %w", err)
		}
	case ".json", ".jsonc":
		if err := json.Unmarshal(jsonc.ToJSON(data), &cat); err != nil {
			return Catalog{}, fmt.Errorf("failed to parse JSON catalog: %w", err)
		}
	default:
		return Catalog{}, fmt.Errorf("%w: %s", ErrUnsupportedFile, path)
	}

	if err := cat.Validate(); err != nil {
		return Catalog{}, fmt.Errorf("catalog validation failed: %w", err)
	}
	return cat, nil
}

// Validate checks that the catalog can seed a request form.
func (c Catalog) Validate() error {
	if len(c.Roles) == 0 {
		return ErrNoRoles
	}
	if len(c.ExpenseTypes) == 0 {
		return ErrNoExpenseTypes
	}
	if err := checkUnique("roles", c.Roles); err != nil {
		return err
	}
	if err := checkUnique("expense_types", c.ExpenseTypes); err != nil {
		return err
	}

	// Exports key crew members by name, so names must be unique as well.
	seen := make(map[int64]bool, len(c.Personnel))
	names := make(map[string]bool, len(c.Personnel))
	for i, p := range c.Personnel {
		if p.ID <= 0 {
			return fmt.Errorf("%w: personnel[%d]", ErrPersonMissingID, i)
		}
		if strings.TrimSpace(p.Name) == "" {
			return fmt.Errorf("%w: personnel[%d]", ErrPersonMissingName, i)
		}
		if seen[p.ID] {
			return fmt.Errorf("%w: id %d", ErrDuplicatePerson, p.ID)
		}
		name := strings.TrimSpace(p.Name)
		if names[name] {
			return fmt.Errorf("%w: name %q", ErrDuplicatePerson, name)
		}
		seen[p.ID] = true
		names[name] = true
	}
	return nil
}

// HasRole reports whether role is in the role catalog.
func (c Catalog) HasRole(role string) bool {
	return contains(c.Roles, role)
}

// HasExpenseType reports whether t is in the expense-type catalog.
func (c Catalog) HasExpenseType(t string) bool {
	return contains(c.ExpenseTypes, t)
}

func checkUnique(field string, values []string) error {
	seen := make(map[string]bool, len(values))
	for _, v := range values {
		if seen[v] {
			return fmt.Errorf("%w: %s %q", ErrDuplicateEntry, field, v)
		}
		seen[v] = true
	}
	return nil
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
