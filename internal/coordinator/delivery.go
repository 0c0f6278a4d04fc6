package coordinator

import (
	"context"
	"fmt"

	"github.com/samber/lo"

	"taxi-relay/internal/models"
)

// Delivery modes
const (
	ModeSolo     = "solo"
	ModeTransfer = "transfer"
)

// DeliveryReport describes how a passenger was served
type DeliveryReport struct {
	Passenger     models.PassengerID `json:"passenger"`
	Mode          string             `json:"mode"`
	Strategy      string             `json:"strategy,omitempty"`
	PickupAgent   models.AgentID     `json:"pickup_agent"`
	DropoffAgent  models.AgentID     `json:"dropoff_agent"`
	PickupCost    int                `json:"pickup_cost"`
	TransferPoint *TransferPoint     `json:"transfer_point,omitempty"`
	Ticks         int                `json:"ticks"`
	Reward        float64            `json:"reward"`
	Delivered     bool               `json:"delivered"`
}

// Assignments converts the report into run history rows
func (r *DeliveryReport) Assignments(runID string) []models.RunAssignment {
	rows := []models.RunAssignment{{
		RunID:       runID,
		AgentID:     r.PickupAgent,
		PassengerID: r.Passenger,
		Role:        models.RolePickup,
		Cost:        r.PickupCost,
	}}
	if r.TransferPoint != nil {
		rows = append(rows, models.RunAssignment{
			RunID:       runID,
			AgentID:     r.PickupAgent,
			PassengerID: r.Passenger,
			Role:        models.RoleTransfer,
			Point:       r.TransferPoint.Point,
			Cost:        r.TransferPoint.FromCost,
		})
	}
	rows = append(rows, models.RunAssignment{
		RunID:       runID,
		AgentID:     r.DropoffAgent,
		PassengerID: r.Passenger,
		Role:        models.RoleDropoff,
	})
	return rows
}

// DeliverSolo has the cheapest capable agent pick the passenger up and drop
// it at its destination. It fails with ErrNoFeasibleAgent when no single
// agent has the fuel for the whole trip.
func (c *Coordinator) DeliverSolo(ctx context.Context, pid models.PassengerID) (*DeliveryReport, error) {
	p, err := c.passenger(pid)
	if err != nil {
		return nil, err
	}

	capable, err := c.CapableAgents(ctx, pid)
	if err != nil {
		return nil, err
	}
	if len(capable) == 0 {
		c.log.Info("no agent can deliver alone", "passenger", pid)
		return nil, fmt.Errorf("%w for passenger %d", ErrNoFeasibleAgent, pid)
	}

	costs := make(map[models.AgentID]int, len(capable))
	for _, aid := range capable {
		toPickup, toDest, err := c.soloCost(ctx, c.agents[aid], p)
		if err != nil {
			return nil, err
		}
		costs[aid] = toPickup + toDest
	}
	chosen := lo.MinBy(capable, func(a, b models.AgentID) bool { return costs[a] < costs[b] })

	return c.runSolo(ctx, p, chosen)
}

func (c *Coordinator) runSolo(ctx context.Context, p *models.Passenger, aid models.AgentID) (*DeliveryReport, error) {
	startTicks, startReward := c.ticks, c.reward
	report := &DeliveryReport{Passenger: p.ID, Mode: ModeSolo, PickupAgent: aid, DropoffAgent: aid}

	cost, err := c.planner.PathCost(ctx, c.agents[aid], nil, p.Pickup)
	if err != nil {
		return nil, err
	}
	report.PickupCost = cost

	if err := c.SendToPickup(aid, p.ID); err != nil {
		return nil, err
	}
	if err := c.SendToDropoff(aid, nil); err != nil {
		return nil, err
	}
	_, err = c.ExecuteAll(ctx)
	c.finishReport(report, p, startTicks, startReward)
	if err != nil {
		return report, &DeliveryError{Passenger: p.ID, Stage: p.Stage, Err: err}
	}

	c.log.Info("solo delivery finished", "passenger", p.ID, "agent", aid, "delivered", report.Delivered, "ticks", report.Ticks)
	return report, nil
}

// DeliverWithTransfer serves a passenger with two agents. The closest
// feasible agent picks the passenger up, the strategy picks a hand-off
// point for each other agent, and the partner with the cheapest feasible
// onward trip takes over and completes the delivery.
func (c *Coordinator) DeliverWithTransfer(ctx context.Context, pid models.PassengerID, strategy TransferPointStrategy) (*DeliveryReport, error) {
	p, err := c.passenger(pid)
	if err != nil {
		return nil, err
	}

	from, ok := c.FindClosestFeasibleAgent(ctx, p.Pickup)
	if !ok {
		c.log.Info("no agent can reach pickup", "passenger", pid, "pickup", p.Pickup.String())
		return nil, fmt.Errorf("%w for pickup of passenger %d", ErrNoFeasibleAgent, pid)
	}

	startTicks, startReward := c.ticks, c.reward
	report := &DeliveryReport{Passenger: pid, Mode: ModeTransfer, Strategy: strategy.Name(), PickupAgent: from}
	if err := c.pickUp(ctx, p, from, report); err != nil {
		c.finishReport(report, p, startTicks, startReward)
		return report, err
	}

	to, tp, err := c.choosePartner(p, from, strategy)
	if err != nil {
		c.finishReport(report, p, startTicks, startReward)
		return report, &DeliveryError{Passenger: pid, Stage: p.Stage, Err: err}
	}

	err = c.handOff(ctx, p, from, to, tp, report)
	c.finishReport(report, p, startTicks, startReward)
	if err != nil {
		return report, err
	}

	c.log.Info("transfer delivery finished",
		"passenger", pid,
		"pickup_agent", from,
		"dropoff_agent", to,
		"point", tp.Point.String(),
		"strategy", strategy.Name(),
		"delivered", report.Delivered,
		"ticks", report.Ticks)
	return report, nil
}

// pickUp sends an agent to the passenger and runs until it is aboard
func (c *Coordinator) pickUp(ctx context.Context, p *models.Passenger, aid models.AgentID, report *DeliveryReport) error {
	cost, err := c.planner.PathCost(ctx, c.agents[aid], nil, p.Pickup)
	if err != nil {
		return err
	}
	report.PickupCost = cost

	if err := c.SendToPickup(aid, p.ID); err != nil {
		return err
	}
	if _, err := c.ExecuteAll(ctx); err != nil {
		return &DeliveryError{Passenger: p.ID, Stage: p.Stage, Err: err}
	}
	if p.Holder != aid {
		return &DeliveryError{Passenger: p.ID, Stage: p.Stage,
			Err: fmt.Errorf("%w: agent %d did not pick up at %s", ErrHandoffFailed, aid, p.Pickup)}
	}
	return nil
}

// handOff transfers the passenger at tp and lets the receiver finish
func (c *Coordinator) handOff(ctx context.Context, p *models.Passenger, from, to models.AgentID, tp *TransferPoint, report *DeliveryReport) error {
	report.TransferPoint = tp
	report.DropoffAgent = to

	if err := c.TransferPassenger(ctx, p.ID, from, to, tp.Point); err != nil {
		return err
	}
	if p.Stage == models.StageDelivered {
		report.DropoffAgent = from
		return nil
	}

	if err := c.SendToDropoff(to, nil); err != nil {
		return err
	}
	if _, err := c.ExecuteAll(ctx); err != nil {
		return &DeliveryError{Passenger: p.ID, Stage: p.Stage, Err: err}
	}
	return nil
}

// choosePartner asks the strategy for a hand-off point with every other
// agent and keeps the cheapest one the receiver can afford
func (c *Coordinator) choosePartner(p *models.Passenger, from models.AgentID, strategy TransferPointStrategy) (models.AgentID, *TransferPoint, error) {
	best := models.NoAgent
	var bestPoint *TransferPoint

	for _, agent := range c.agents {
		if agent.ID == from {
			continue
		}
		tp, err := c.FindTransferPoint(p.ID, from, agent.ID, strategy)
		if err != nil {
			c.log.Debug("no transfer point with agent", "agent", agent.ID, "error", err)
			continue
		}
		if tp.ToCost < 0 || tp.ToCost >= agent.Fuel {
			continue
		}
		if bestPoint == nil || tp.ToCost < bestPoint.ToCost {
			best, bestPoint = agent.ID, tp
		}
	}

	if bestPoint == nil {
		return models.NoAgent, nil, fmt.Errorf("%w: no partner for agent %d can finish passenger %d", ErrNoTransferPoint, from, p.ID)
	}
	return best, bestPoint, nil
}

func (c *Coordinator) finishReport(report *DeliveryReport, p *models.Passenger, startTicks int, startReward float64) {
	report.Ticks = c.ticks - startTicks
	report.Reward = c.reward - startReward
	report.Delivered = p.Stage == models.StageDelivered
}
