package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/samber/lo"

	"taxi-relay/internal/models"
)

// Negotiator runs the decentralized protocol: agents exchange messages
// through a Mailbox and each decides from its own inbox. It runs on top of
// a Coordinator, which still executes the resulting plans.
type Negotiator struct {
	c   *Coordinator
	box *Mailbox
	log *slog.Logger
}

// NewNegotiator creates a negotiator with an empty mailbox
func NewNegotiator(c *Coordinator) *Negotiator {
	return &Negotiator{c: c, box: NewMailbox(), log: c.log.With("protocol", "negotiation")}
}

// Mailbox exposes the message queues
func (n *Negotiator) Mailbox() *Mailbox { return n.box }

// Award is one passenger won by one agent
type Award struct {
	Agent     models.AgentID     `json:"agent"`
	Passenger models.PassengerID `json:"passenger"`
	Cost      float64            `json:"cost"`
	Round     int                `json:"round"`
}

// lowerBid orders bids by cost, then by bidder
func lowerBid(a, b BidMessage) bool {
	if a.Cost != b.Cost {
		return a.Cost < b.Cost
	}
	return a.From < b.From
}

// AllocateByBidding assigns passengers to idle agents in rounds. Every idle
// agent broadcasts a bid for every open passenger it can carry from pickup
// to destination on its own fuel. Each agent then reads its inbox and claims the cheapest passenger
// on which it holds the lowest bid. Claimed passengers and their agents
// leave the next round. Passengers nobody can carry alone stay unassigned;
// RelayByHelp can still deliver them.
func (n *Negotiator) AllocateByBidding(ctx context.Context, pids []models.PassengerID) ([]Award, error) {
	open := lo.Uniq(pids)
	for _, pid := range open {
		if _, err := n.c.passenger(pid); err != nil {
			return nil, err
		}
	}

	idle := lo.FilterMap(n.c.agents, func(a *models.Agent, _ int) (models.AgentID, bool) {
		return a.ID, !a.HasPassenger() && len(a.Queue) == 0
	})

	var awards []Award
	for round := 1; len(open) > 0 && len(idle) > 0; round++ {
		if err := ctx.Err(); err != nil {
			return awards, err
		}

		own := make(map[models.AgentID][]BidMessage, len(idle))
		for _, aid := range idle {
			for _, pid := range open {
				bid, ok := n.bid(ctx, aid, pid)
				if !ok {
					continue
				}
				own[aid] = append(own[aid], bid)
				n.box.Broadcast(idle, bid)
			}
		}

		var claimed []Award
		for _, aid := range idle {
			if claim, ok := n.claim(aid, own[aid]); ok {
				claimed = append(claimed, Award{Agent: aid, Passenger: claim.Passenger, Cost: claim.Cost, Round: round})
			}
		}
		if len(claimed) == 0 {
			break
		}

		awards = append(awards, claimed...)
		idle = lo.Without(idle, lo.Map(claimed, func(a Award, _ int) models.AgentID { return a.Agent })...)
		open = lo.Without(open, lo.Map(claimed, func(a Award, _ int) models.PassengerID { return a.Passenger })...)
		n.log.Debug("bidding round closed", "round", round, "claimed", len(claimed), "open", len(open))
	}

	sort.Slice(awards, func(i, j int) bool { return awards[i].Passenger < awards[j].Passenger })
	return awards, nil
}

// bid prices a passenger for one agent. An agent bids only when the
// approach and the trip together fit in its fuel.
func (n *Negotiator) bid(ctx context.Context, aid models.AgentID, pid models.PassengerID) (BidMessage, bool) {
	agent := n.c.agents[aid]
	p := n.c.passengers[pid]

	toPickup, toDest, err := n.c.soloCost(ctx, agent, p)
	if err != nil || toPickup+toDest >= agent.Fuel {
		return BidMessage{}, false
	}
	cost, err := n.c.ExpectedReward(ctx, aid, pid)
	if err != nil {
		return BidMessage{}, false
	}
	return BidMessage{From: aid, Passenger: pid, Cost: cost}, true
}

// claim reads an agent's inbox and returns the cheapest of its own bids
// that no other agent beat
func (n *Negotiator) claim(aid models.AgentID, mine []BidMessage) (BidMessage, bool) {
	lowest := make(map[models.PassengerID]BidMessage)
	for _, bid := range mine {
		lowest[bid.Passenger] = bid
	}
	for _, env := range n.box.Drain(aid) {
		bid, ok := env.Message.(BidMessage)
		if !ok {
			continue
		}
		if current, seen := lowest[bid.Passenger]; !seen || lowerBid(bid, current) {
			lowest[bid.Passenger] = bid
		}
	}

	var best BidMessage
	found := false
	for _, bid := range mine {
		if lowest[bid.Passenger].From != aid {
			continue
		}
		if !found || bid.Cost < best.Cost || (bid.Cost == best.Cost && bid.Passenger < best.Passenger) {
			best, found = bid, true
		}
	}
	return best, found
}

// Dispatch plans pickup and delivery for every award and executes all of
// them together
func (n *Negotiator) Dispatch(ctx context.Context, awards []Award) (*ExecutionResult, error) {
	for _, a := range awards {
		if err := n.c.SendToPickup(a.Agent, a.Passenger); err != nil {
			return nil, err
		}
		if err := n.c.SendToDropoff(a.Agent, nil); err != nil {
			return nil, err
		}
	}
	return n.c.ExecuteAll(ctx)
}

// RequestHelp broadcasts a HelpRequest from the agent holding a passenger.
// Every other agent answers with a TransferOffer when the strategy finds a
// point from which it can still reach the destination on its own fuel. The
// holder accepts the offer with the cheapest onward trip.
func (n *Negotiator) RequestHelp(ctx context.Context, holder models.AgentID, pid models.PassengerID, strategy TransferPointStrategy) (*TransferOffer, error) {
	agent, err := n.c.Agent(holder)
	if err != nil {
		return nil, err
	}
	p, err := n.c.passenger(pid)
	if err != nil {
		return nil, err
	}

	everyone := lo.Map(n.c.agents, func(a *models.Agent, _ int) models.AgentID { return a.ID })
	n.box.Broadcast(everyone, HelpRequest{
		From:        holder,
		Passenger:   pid,
		Location:    agent.Location,
		Fuel:        agent.Fuel,
		Destination: p.Destination,
	})

	for _, aid := range everyone {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if aid != holder {
			n.answerHelp(aid, strategy)
		}
	}

	var best *TransferOffer
	for _, env := range n.box.Drain(holder) {
		offer, ok := env.Message.(TransferOffer)
		if !ok || offer.Passenger != pid {
			continue
		}
		if best == nil || offer.Point.ToCost < best.Point.ToCost ||
			(offer.Point.ToCost == best.Point.ToCost && offer.From < best.From) {
			best = &offer
		}
	}

	if best == nil {
		n.log.Info("help request unanswered", "holder", holder, "passenger", pid)
		return nil, fmt.Errorf("%w: no agent answered agent %d for passenger %d", ErrNoTransferPoint, holder, pid)
	}
	n.log.Debug("transfer offer accepted", "holder", holder, "helper", best.From, "point", best.Point.Point.String())
	return best, nil
}

func (n *Negotiator) answerHelp(aid models.AgentID, strategy TransferPointStrategy) {
	helper := n.c.agents[aid]
	for _, env := range n.box.Drain(aid) {
		req, ok := env.Message.(HelpRequest)
		if !ok {
			continue
		}

		tp, err := strategy.FindTransferPoint(n.c.graph, TransferRequest{
			From:        req.Location,
			FromFuel:    req.Fuel,
			To:          helper.Location,
			Destination: req.Destination,
		})
		if err != nil || tp.ToCost < 0 || tp.ToCost >= helper.Fuel {
			continue
		}

		n.box.Send(req.From, TransferOffer{
			From:      aid,
			To:        req.From,
			RequestID: env.ID,
			Passenger: req.Passenger,
			Point:     *tp,
		})
	}
}

// RelayByHelp delivers a passenger no single agent can carry. The closest
// agent that reaches the pickup collects it and broadcasts a HelpRequest;
// the cheapest TransferOffer takes it from the offered point to the
// destination.
func (n *Negotiator) RelayByHelp(ctx context.Context, pid models.PassengerID, strategy TransferPointStrategy) (*DeliveryReport, error) {
	c := n.c
	p, err := c.passenger(pid)
	if err != nil {
		return nil, err
	}

	from, ok := c.FindClosestFeasibleAgent(ctx, p.Pickup)
	if !ok {
		return nil, fmt.Errorf("%w for pickup of passenger %d", ErrNoFeasibleAgent, pid)
	}

	startTicks, startReward := c.ticks, c.reward
	report := &DeliveryReport{Passenger: pid, Mode: ModeTransfer, Strategy: strategy.Name(), PickupAgent: from}
	if err := c.pickUp(ctx, p, from, report); err != nil {
		c.finishReport(report, p, startTicks, startReward)
		return report, err
	}

	offer, err := n.RequestHelp(ctx, from, pid, strategy)
	if err != nil {
		c.finishReport(report, p, startTicks, startReward)
		return report, &DeliveryError{Passenger: pid, Stage: p.Stage, Err: err}
	}

	point := offer.Point
	err = c.handOff(ctx, p, from, offer.From, &point, report)
	c.finishReport(report, p, startTicks, startReward)
	if err != nil {
		return report, err
	}

	n.log.Info("relay by help finished",
		"passenger", pid,
		"holder", from,
		"helper", offer.From,
		"point", point.Point.String(),
		"delivered", report.Delivered)
	return report, nil
}
