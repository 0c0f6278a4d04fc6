package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActionApply(t *testing.T) {
	origin := Coordinate{Row: 2, Col: 2}

	assert.Equal(t, Coordinate{Row: 3, Col: 2}, ActionSouth.Apply(origin))
	assert.Equal(t, Coordinate{Row: 1, Col: 2}, ActionNorth.Apply(origin))
	assert.Equal(t, Coordinate{Row: 2, Col: 3}, ActionEast.Apply(origin))
	assert.Equal(t, Coordinate{Row: 2, Col: 1}, ActionWest.Apply(origin))
	assert.Equal(t, origin, ActionPickup.Apply(origin))
	assert.Equal(t, origin, ActionStandby.Apply(origin))
}

func TestActionNamesRoundTrip(t *testing.T) {
	for _, a := range AllActions() {
		parsed, err := ParseAction(a.String())
		require.NoError(t, err)
		assert.Equal(t, a, parsed)
	}

	_, err := ParseAction("teleport")
	assert.Error(t, err)
}

func TestDefaultActionTable(t *testing.T) {
	table := DefaultActionTable()

	assert.Equal(t, 0, table.Index(ActionSouth))
	assert.Equal(t, 1, table.Index(ActionNorth))
	assert.Equal(t, 2, table.Index(ActionEast))
	assert.Equal(t, 3, table.Index(ActionWest))
	assert.Equal(t, 4, table.Index(ActionPickup))
	assert.Equal(t, 5, table.Index(ActionDropoff))
	assert.Equal(t, 8, table.Index(ActionStandby))
	assert.Equal(t, 9, table.Index(ActionRefuel))
}

func TestActionTableOverride(t *testing.T) {
	table := ActionTable{Indices: map[Action]int{ActionStandby: 42}}

	assert.Equal(t, 42, table.Index(ActionStandby))
	assert.Equal(t, int(ActionPickup), table.Index(ActionPickup))

	a, ok := table.Action(42)
	require.True(t, ok)
	assert.Equal(t, ActionStandby, a)

	_, ok = table.Action(int(ActionStandby))
	assert.False(t, ok, "overridden canonical index must not resolve")
}

func TestAgentPlanTail(t *testing.T) {
	agent := NewAgent(0, Coordinate{Row: 1, Col: 1}, 10)

	assert.False(t, agent.HasPassenger())
	assert.Equal(t, Coordinate{Row: 1, Col: 1}, agent.PlanTail())

	agent.Queue = append(agent.Queue,
		Step{Coordinate: Coordinate{Row: 1, Col: 2}, Action: ActionEast},
		Step{Coordinate: Coordinate{Row: 2, Col: 2}, Action: ActionSouth},
	)
	assert.Equal(t, Coordinate{Row: 2, Col: 2}, agent.PlanTail())
}

func TestStatusStrings(t *testing.T) {
	assert.Equal(t, "delivered", StatusDelivered.String())
	assert.Equal(t, "transferred", StageTransferred.String())
	assert.Equal(t, "(3,4)", Coordinate{Row: 3, Col: 4}.String())
}
