package game

import (
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/geoquest/go/internal/models"
)

func TestManagerLifecycle(t *testing.T) {
	m := NewManager()
	deps := Deps{Clock: clockwork.NewFakeClock()}

	first, err := m.Create("11111", testCities, models.DifficultyEasy, 15, players(2), deps)
	require.NoError(t, err)
	assert.Same(t, first, m.Get("11111"))

	second, err := m.Create("11111", testCities, models.DifficultyHard, 60, players(3), deps)
	require.NoError(t, err)
	assert.Same(t, second, m.Get("11111"))
	assert.Empty(t, first.Players(), "replaced session is destroyed")

	_, err = m.Create("22222", testCities, models.DifficultyMedium, 30, players(2), deps)
	require.NoError(t, err)
	assert.Equal(t, Stats{TotalSessions: 2, ActiveSessions: []string{"11111", "22222"}}, m.Stats())

	m.Delete("11111")
	assert.Nil(t, m.Get("11111"))
	m.Delete("11111")
	assert.Equal(t, 1, m.Stats().TotalSessions)
}

func TestManagerCreateNeedsCities(t *testing.T) {
	m := NewManager()
	_, err := m.Create("11111", testCities[:2], models.DifficultyEasy, 15, players(2), Deps{Clock: clockwork.NewFakeClock()})
	assert.Error(t, err)
	assert.Nil(t, m.Get("11111"))
}
