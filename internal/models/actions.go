package models

import "fmt"

// Action is a primitive agent action
type Action int

const (
	ActionSouth Action = iota
	ActionNorth
	ActionEast
	ActionWest
	ActionPickup
	ActionDropoff
	ActionTurnEngineOn
	ActionTurnEngineOff
	ActionStandby
	ActionRefuel
)

var actionNames = [...]string{
	"south", "north", "east", "west",
	"pickup", "dropoff",
	"turn_engine_on", "turn_engine_off",
	"standby",
	"refuel",
}

// AllActions lists every action in the simulation's canonical order
func AllActions() []Action {
	actions := make([]Action, len(actionNames))
	for i := range actionNames {
		actions[i] = Action(i)
	}
	return actions
}

func (a Action) String() string {
	if a < 0 || int(a) >= len(actionNames) {
		return fmt.Sprintf("action(%d)", int(a))
	}
	return actionNames[a]
}

// ParseAction resolves an action name
func ParseAction(name string) (Action, error) {
	for i, n := range actionNames {
		if n == name {
			return Action(i), nil
		}
	}
	return 0, fmt.Errorf("unknown action %q", name)
}

// IsMove reports whether the action moves the agent
func (a Action) IsMove() bool {
	return a == ActionSouth || a == ActionNorth || a == ActionEast || a == ActionWest
}

// Apply returns the coordinate reached by a move action from c.
// Non-move actions leave c unchanged.
func (a Action) Apply(c Coordinate) Coordinate {
	switch a {
	case ActionSouth:
		return Coordinate{Row: c.Row + 1, Col: c.Col}
	case ActionNorth:
		return Coordinate{Row: c.Row - 1, Col: c.Col}
	case ActionEast:
		return Coordinate{Row: c.Row, Col: c.Col + 1}
	case ActionWest:
		return Coordinate{Row: c.Row, Col: c.Col - 1}
	default:
		return c
	}
}

// ActionTable maps actions to the integer indices the simulation expects
type ActionTable struct {
	Indices map[Action]int `json:"indices"`
}

// DefaultActionTable uses the canonical action order
func DefaultActionTable() ActionTable {
	t := ActionTable{Indices: make(map[Action]int, len(actionNames))}
	for _, a := range AllActions() {
		t.Indices[a] = int(a)
	}
	return t
}

// Index returns the external index of an action, falling back to the
// canonical position when the table does not override it
func (t ActionTable) Index(a Action) int {
	if idx, ok := t.Indices[a]; ok {
		return idx
	}
	return int(a)
}

// Action resolves an external index back to an action
func (t ActionTable) Action(index int) (Action, bool) {
	for a, idx := range t.Indices {
		if idx == index {
			return a, true
		}
	}
	if index >= 0 && index < len(actionNames) {
		if _, overridden := t.Indices[Action(index)]; !overridden {
			return Action(index), true
		}
	}
	return 0, false
}

// CostTable holds the fixed costs used to rank agent/passenger pairings.
// All values are costs: lower is better.
type CostTable struct {
	Step    float64 `json:"step"`
	Pickup  float64 `json:"pickup"`
	Dropoff float64 `json:"dropoff"`
}

// DefaultCostTable counts ticks: one per move plus one each for pickup and drop-off
func DefaultCostTable() CostTable {
	return CostTable{Step: 1, Pickup: 1, Dropoff: 1}
}
