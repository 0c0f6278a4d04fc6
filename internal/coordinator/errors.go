package coordinator

import (
	"errors"
	"fmt"

	"taxi-relay/internal/models"
)

var (
	// ErrNoPassenger is returned when an operation needs an agent that carries
	// or is assigned a passenger
	ErrNoPassenger = errors.New("agent has no passenger")

	// ErrUnknownAgent is returned for agent identifiers outside the roster
	ErrUnknownAgent = errors.New("unknown agent")

	// ErrUnknownPassenger is returned for passenger identifiers outside the roster
	ErrUnknownPassenger = errors.New("unknown passenger")

	// ErrNoFeasibleAgent is returned when no agent has the fuel to do the job
	ErrNoFeasibleAgent = errors.New("no feasible agent")

	// ErrNoTransferPoint is returned when no hand-off point can be found
	ErrNoTransferPoint = errors.New("no transfer point")

	// ErrHandoffFailed is returned when the receiving agent did not end up
	// holding the passenger
	ErrHandoffFailed = errors.New("hand-off failed")

	// ErrTickLimit is returned when execution exceeds the configured tick budget
	ErrTickLimit = errors.New("tick limit exceeded")
)

// DeliveryError describes a failed delivery attempt
type DeliveryError struct {
	Passenger models.PassengerID
	Stage     models.Stage
	Err       error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery of passenger %d failed at stage %s: %v", e.Passenger, e.Stage, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}
