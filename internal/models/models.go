package models

import (
	"fmt"
	"time"
)

// Coordinate is a cell on the grid, addressed by row and column
type Coordinate struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

func (c Coordinate) String() string {
	return fmt.Sprintf("(%d,%d)", c.Row, c.Col)
}

// AgentID identifies an agent by its index in the simulation state
type AgentID int

// PassengerID identifies a passenger by its index in the simulation state
type PassengerID int

// NoAgent is returned when no agent qualifies for a request
const NoAgent AgentID = -1

// NoPassenger marks an agent without an assigned passenger
const NoPassenger PassengerID = -1

// Step is one planned primitive action together with the cell the agent
// is expected to occupy once the action has been applied
type Step struct {
	Coordinate Coordinate `json:"coordinate"`
	Action     Action     `json:"action"`
}

// Agent is a taxi in the roster. Location and Fuel mirror the simulation;
// Queue holds the pending plan and is only consumed from the front.
type Agent struct {
	ID        AgentID     `json:"id"`
	Location  Coordinate  `json:"location"`
	Fuel      int         `json:"fuel"`
	Queue     []Step      `json:"queue"`
	Passenger PassengerID `json:"passenger"`

	// Previous is the last step handed out, used to detect blocked moves.
	Previous *Step `json:"previous,omitempty"`
	// Stalls counts consecutive re-issues of Previous.
	Stalls int `json:"stalls"`
}

// NewAgent creates an agent with an empty plan
func NewAgent(id AgentID, location Coordinate, fuel int) *Agent {
	return &Agent{
		ID:        id,
		Location:  location,
		Fuel:      fuel,
		Queue:     []Step{},
		Passenger: NoPassenger,
	}
}

// HasPassenger reports whether a passenger is assigned to the agent
func (a *Agent) HasPassenger() bool {
	return a.Passenger != NoPassenger
}

// PlanTail returns the cell the agent will occupy after its queue is drained
func (a *Agent) PlanTail() Coordinate {
	if len(a.Queue) == 0 {
		return a.Location
	}
	return a.Queue[len(a.Queue)-1].Coordinate
}

// PassengerStatus is the delivery status reported by the simulation
type PassengerStatus int

const (
	StatusWaiting PassengerStatus = iota
	StatusInTransit
	StatusDelivered
)

func (s PassengerStatus) String() string {
	switch s {
	case StatusWaiting:
		return "waiting"
	case StatusInTransit:
		return "in_transit"
	case StatusDelivered:
		return "delivered"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Stage is the coordinator's view of a passenger's lifecycle
type Stage int

const (
	StageUnassigned Stage = iota
	StageAssigned
	StagePickedUp
	StageTransferred
	StageDelivered
)

func (s Stage) String() string {
	return [...]string{"unassigned", "assigned", "picked_up", "transferred", "delivered"}[s]
}

// Passenger is a delivery request. Pickup moves when the passenger is left
// at an intermediate drop-off point.
type Passenger struct {
	ID          PassengerID     `json:"id"`
	Pickup      Coordinate      `json:"pickup"`
	Destination Coordinate      `json:"destination"`
	Status      PassengerStatus `json:"status"`
	Holder      AgentID         `json:"holder"`
	Stage       Stage           `json:"stage"`
}

// AgentState is one agent's entry in a simulation snapshot
type AgentState struct {
	Location Coordinate `json:"location"`
	Fuel     int        `json:"fuel"`
}

// PassengerState is one passenger's entry in a simulation snapshot
type PassengerState struct {
	Pickup      Coordinate      `json:"pickup"`
	Destination Coordinate      `json:"destination"`
	Status      PassengerStatus `json:"status"`
	Holder      AgentID         `json:"holder"`
}

// WorldState is a read-only snapshot of the simulation, ordered by index
type WorldState struct {
	Map        []string         `json:"map"`
	Agents     []AgentState     `json:"agents"`
	Passengers []PassengerState `json:"passengers"`
}

// PathCostEntry represents a cached path cost lookup
type PathCostEntry struct {
	MapID       string     `json:"map_id"`
	Origin      Coordinate `json:"origin"`
	Destination Coordinate `json:"destination"`
	Cost        int        `json:"cost"`
	Reachable   bool       `json:"reachable"`
}

// Run is a recorded delivery attempt
type Run struct {
	ID         string    `json:"id"`
	MapID      string    `json:"map_id"`
	Mode       string    `json:"mode"`
	Strategy   string    `json:"strategy,omitempty"`
	Agents     int       `json:"agents"`
	Passengers int       `json:"passengers"`
	Delivered  int       `json:"delivered"`
	Ticks      int       `json:"ticks"`
	Reward     float64   `json:"reward"`
	Notes      string    `json:"notes,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// RunAssignment records which agent served which passenger and in what role
type RunAssignment struct {
	ID          int64       `json:"id"`
	RunID       string      `json:"run_id"`
	AgentID     AgentID     `json:"agent_id"`
	PassengerID PassengerID `json:"passenger_id"`
	Role        string      `json:"role"`
	Point       Coordinate  `json:"point"`
	Cost        int         `json:"cost"`
}

// Assignment roles
const (
	RolePickup   = "pickup"
	RoleTransfer = "transfer"
	RoleDropoff  = "dropoff"
)
