package testutil

import (
	"context"
	"sync"

	"taxi-relay/internal/models"
)

// Simulation matches the interface the coordinator drives
type Simulation interface {
	State(ctx context.Context) (*models.WorldState, error)
	Step(ctx context.Context, actions []int) (*models.WorldState, []float64, bool, error)
}

// RecordingSimulation forwards to an inner simulation and keeps every
// action vector it was given
type RecordingSimulation struct {
	mu      sync.Mutex
	inner   Simulation
	Actions [][]int
	Err     error
}

func NewRecordingSimulation(inner Simulation) *RecordingSimulation {
	return &RecordingSimulation{inner: inner, Actions: [][]int{}}
}

func (s *RecordingSimulation) State(ctx context.Context) (*models.WorldState, error) {
	return s.inner.State(ctx)
}

// Step records actions, then fails with Err when it is set
func (s *RecordingSimulation) Step(ctx context.Context, actions []int) (*models.WorldState, []float64, bool, error) {
	s.mu.Lock()
	s.Actions = append(s.Actions, append([]int(nil), actions...))
	err := s.Err
	s.mu.Unlock()

	if err != nil {
		return nil, nil, false, err
	}
	return s.inner.Step(ctx, actions)
}

// Ticks returns the number of recorded steps
func (s *RecordingSimulation) Ticks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Actions)
}

// FrozenSimulation reports the same state forever: nothing it is asked to
// do takes effect. Useful for exercising blocked-move handling.
type FrozenSimulation struct {
	mu      sync.Mutex
	state   models.WorldState
	Actions [][]int
}

func NewFrozenSimulation(state models.WorldState) *FrozenSimulation {
	return &FrozenSimulation{state: state, Actions: [][]int{}}
}

func (s *FrozenSimulation) State(ctx context.Context) (*models.WorldState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyState(), nil
}

func (s *FrozenSimulation) Step(ctx context.Context, actions []int) (*models.WorldState, []float64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Actions = append(s.Actions, append([]int(nil), actions...))
	return s.copyState(), make([]float64, len(actions)), false, nil
}

func (s *FrozenSimulation) copyState() *models.WorldState {
	return &models.WorldState{
		Map:        append([]string(nil), s.state.Map...),
		Agents:     append([]models.AgentState(nil), s.state.Agents...),
		Passengers: append([]models.PassengerState(nil), s.state.Passengers...),
	}
}
