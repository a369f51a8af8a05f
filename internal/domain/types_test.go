package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseZone(t *testing.T) {
	z, err := ParseZone(" Zona 2 ")
	require.NoError(t, err)
	assert.Equal(t, Zone2, z)

	_, err = ParseZone("Zona 4")
	assert.ErrorIs(t, err, ErrUnknownZone)

	_, err = ParseZone("")
	assert.ErrorIs(t, err, ErrUnknownZone)
}

func TestCrewMemberRoles(t *testing.T) {
	m := CrewMember{Person: Person{ID: 1, Name: "Juan Pérez"}}
	assert.Equal(t, "", m.PrimaryRole())
	assert.Equal(t, "", m.RoleLabel())

	m.SelectedRoles = []string{"Chofer", "Ayudante"}
	assert.Equal(t, "Chofer", m.PrimaryRole())
	assert.Equal(t, "Chofer, Ayudante", m.RoleLabel())
}
