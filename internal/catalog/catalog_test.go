package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cat := Default()
	require.NoError(t, cat.Validate())
	assert.Len(t, cat.Personnel, 3)
	assert.Equal(t, []string{"Jefe de Grupo", "Montajista", "Ayudante", "Chofer"}, cat.Roles)
	assert.Equal(t, []string{"Pensión", "Peaje", "Bencina", "Almuerzo"}, cat.ExpenseTypes)
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "catalog.yaml", `
personnel:
  - id: 10
    name: "Ana Soto"
    roles: ["Técnico"]
  - id: 11
    name: "Pedro Vega"
roles: ["Jefe de Grupo", "Chofer"]
expense_types: ["Pensión", "Peaje"]
`)

	cat, err := Load(path)
	require.NoError(t, err)
	require.Len(t, cat.Personnel, 2)
	assert.Equal(t, int64(10), cat.Personnel[0].ID)
	assert.Equal(t, "Ana Soto", cat.Personnel[0].Name)
	assert.Equal(t, []string{"Técnico"}, cat.Personnel[0].Roles)
	assert.Equal(t, []string{"Jefe de Grupo", "Chofer"}, cat.Roles)
	assert.Equal(t, []string{"Pensión", "Peaje"}, cat.ExpenseTypes)
}

func TestLoadJSONC(t *testing.T) {
	path := writeFile(t, "catalog.jsonc", `{
  // field crew
  "personnel": [
    {"id": 1, "name": "Juan Pérez", "roles": ["Técnico"]},
  ],
  "roles": ["Chofer"], /* single role */
  "expense_types": ["Peaje"],
}`)

	cat, err := Load(path)
	require.NoError(t, err)
	require.Len(t, cat.Personnel, 1)
	assert.Equal(t, "Juan Pérez", cat.Personnel[0].Name)
	assert.Equal(t, []string{"Chofer"}, cat.Roles)
}

func TestLoadErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})

	t.Run("unsupported extension", func(t *testing.T) {
		_, err := Load(writeFile(t, "catalog.toml", "roles = []"))
		assert.ErrorIs(t, err, ErrUnsupportedFile)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		_, err := Load(writeFile(t, "catalog.yaml", "roles: [unterminated"))
		assert.Error(t, err)
	})

	t.Run("no roles", func(t *testing.T) {
		_, err := Load(writeFile(t, "catalog.yaml", "expense_types: [Peaje]\n"))
		assert.ErrorIs(t, err, ErrNoRoles)
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Catalog)
		wantErr error
	}{
		{"no expense types", func(c *Catalog) { c.ExpenseTypes = nil }, ErrNoExpenseTypes},
		{"duplicate role", func(c *Catalog) { c.Roles = append(c.Roles, "Chofer") }, ErrDuplicateEntry},
		{"duplicate type", func(c *Catalog) { c.ExpenseTypes = append(c.ExpenseTypes, "Peaje") }, ErrDuplicateEntry},
		{"zero id", func(c *Catalog) { c.Personnel[0].ID = 0 }, ErrPersonMissingID},
		{"blank name", func(c *Catalog) { c.Personnel[1].Name = "  " }, ErrPersonMissingName},
		{"duplicate id", func(c *Catalog) { c.Personnel[2].ID = 1 }, ErrDuplicatePerson},
		{"duplicate name", func(c *Catalog) { c.Personnel[1].Name = " Juan Pérez " }, ErrDuplicatePerson},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cat := Default()
			tt.mutate(&cat)
			assert.ErrorIs(t, cat.Validate(), tt.wantErr)
		})
	}
}

func TestHasRoleAndExpenseType(t *testing.T) {
	cat := Default()
	assert.True(t, cat.HasRole("Chofer"))
	assert.False(t, cat.HasRole("Piloto"))
	assert.True(t, cat.HasExpenseType("Bencina"))
	assert.False(t, cat.HasExpenseType("Hotel"))
}
