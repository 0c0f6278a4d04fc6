package coordinator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taxi-relay/internal/gridmap"
	"taxi-relay/internal/models"
	"taxi-relay/internal/sim"
)

func TestMailbox(t *testing.T) {
	box := NewMailbox()

	id := box.Send(1, BidMessage{From: 0, Passenger: 3, Cost: 4})
	assert.NotEmpty(t, id)

	ids := box.Broadcast([]models.AgentID{0, 1, 2}, HelpRequest{From: 0, Passenger: 3})
	assert.Len(t, ids, 2, "sender is skipped")
	assert.NotEqual(t, ids[0], ids[1])

	assert.Equal(t, 2, box.Pending(1))
	assert.Equal(t, 0, box.Pending(0))
	assert.Equal(t, 3, box.Sent())

	msgs := box.Drain(1)
	require.Len(t, msgs, 2)
	assert.Equal(t, MsgBid, msgs[0].Message.Type())
	assert.Equal(t, MsgHelpRequest, msgs[1].Message.Type())
	assert.Equal(t, models.AgentID(1), msgs[0].To)
	assert.Empty(t, box.Drain(1))
}

func TestAllocateByBiddingSplitsWork(t *testing.T) {
	_, coord := newWorld(t, gridmap.OpenLayout(5, 5), []sim.AgentSpec{
		agentAt(c(0, 0), 20),
		agentAt(c(4, 4), 20),
	}, []sim.PassengerSpec{
		ride(c(0, 1), c(0, 2)),
		ride(c(4, 3), c(4, 2)),
	})
	n := NewNegotiator(coord)

	awards, err := n.AllocateByBidding(context.Background(), []models.PassengerID{0, 1})
	require.NoError(t, err)
	assert.Equal(t, []Award{
		{Agent: 0, Passenger: 0, Cost: 4, Round: 1},
		{Agent: 1, Passenger: 1, Cost: 4, Round: 1},
	}, awards)
	assert.Equal(t, 4, n.Mailbox().Sent())

	result, err := n.Dispatch(context.Background(), awards)
	require.NoError(t, err)
	assert.True(t, result.Done)
	assert.Equal(t, 2.0, result.Total())
}

func TestAllocateByBiddingContention(t *testing.T) {
	_, coord := newWorld(t, gridmap.OpenLayout(1, 6), []sim.AgentSpec{
		agentAt(c(0, 0), 20),
		agentAt(c(0, 5), 20),
	}, []sim.PassengerSpec{
		ride(c(0, 1), c(0, 0)),
		ride(c(0, 2), c(0, 1)),
	})

	// agent 0 is cheapest for both and keeps the cheaper one
	awards, err := NewNegotiator(coord).AllocateByBidding(context.Background(), []models.PassengerID{0, 1})
	require.NoError(t, err)
	assert.Equal(t, []Award{
		{Agent: 0, Passenger: 0, Cost: 4, Round: 1},
		{Agent: 1, Passenger: 1, Cost: 6, Round: 2},
	}, awards)
}

func TestAllocateByBiddingUnreachable(t *testing.T) {
	_, coord := newWorld(t, gridmap.OpenLayout(3, 3),
		[]sim.AgentSpec{agentAt(c(0, 0), 1)},
		[]sim.PassengerSpec{ride(c(2, 2), c(0, 0))})

	awards, err := NewNegotiator(coord).AllocateByBidding(context.Background(), []models.PassengerID{0})
	require.NoError(t, err)
	assert.Empty(t, awards)

	_, err = NewNegotiator(coord).AllocateByBidding(context.Background(), []models.PassengerID{4})
	assert.True(t, errors.Is(err, ErrUnknownPassenger))
}

func TestAllocateByBiddingNeedsFuelForWholeTrip(t *testing.T) {
	_, coord := newWorld(t, gridmap.OpenLayout(1, 12), []sim.AgentSpec{
		agentAt(c(0, 1), 6),
		agentAt(c(0, 0), 20),
	}, []sim.PassengerSpec{ride(c(0, 2), c(0, 11))})
	n := NewNegotiator(coord)

	// agent 0 reaches the pickup in one move but runs dry on the way
	awards, err := n.AllocateByBidding(context.Background(), []models.PassengerID{0})
	require.NoError(t, err)
	assert.Equal(t, []Award{{Agent: 1, Passenger: 0, Cost: 13, Round: 1}}, awards)

	result, err := n.Dispatch(context.Background(), awards)
	require.NoError(t, err)
	assert.True(t, result.Done)

	p, _ := coord.Passenger(0)
	assert.Equal(t, models.StageDelivered, p.Stage)
}

func TestRelayByHelp(t *testing.T) {
	_, coord := relayWorld(t)
	ctx := context.Background()
	n := NewNegotiator(coord)

	awards, err := n.AllocateByBidding(ctx, []models.PassengerID{0})
	require.NoError(t, err)
	assert.Empty(t, awards)

	report, err := n.RelayByHelp(ctx, 0, RouteAligned{})
	require.NoError(t, err)
	assert.True(t, report.Delivered)
	assert.Equal(t, ModeTransfer, report.Mode)
	assert.Equal(t, models.AgentID(0), report.PickupAgent)
	assert.Equal(t, models.AgentID(1), report.DropoffAgent)
	require.NotNil(t, report.TransferPoint)
	assert.Equal(t, c(4, 5), report.TransferPoint.Point)
}

func TestRelayByHelpNoPickupAgent(t *testing.T) {
	_, coord := newWorld(t, gridmap.OpenLayout(3, 3),
		[]sim.AgentSpec{agentAt(c(0, 0), 1)},
		[]sim.PassengerSpec{ride(c(2, 2), c(0, 0))})

	_, err := NewNegotiator(coord).RelayByHelp(context.Background(), 0, RouteAligned{})
	assert.True(t, errors.Is(err, ErrNoFeasibleAgent))
}

func TestRequestHelp(t *testing.T) {
	_, coord := relayWorld(t)
	ctx := context.Background()

	require.NoError(t, coord.SendToPickup(0, 0))
	_, err := coord.ExecuteAll(ctx)
	require.NoError(t, err)

	n := NewNegotiator(coord)
	offer, err := n.RequestHelp(ctx, 0, 0, RouteAligned{})
	require.NoError(t, err)
	assert.Equal(t, models.AgentID(1), offer.From)
	assert.Equal(t, models.AgentID(0), offer.To)
	assert.NotEmpty(t, offer.RequestID)
	assert.Equal(t, c(4, 5), offer.Point.Point)

	require.NoError(t, coord.TransferPassenger(ctx, 0, 0, offer.From, offer.Point.Point))
	require.NoError(t, coord.SendToDropoff(offer.From, nil))
	_, err = coord.ExecuteAll(ctx)
	require.NoError(t, err)

	p, _ := coord.Passenger(0)
	assert.Equal(t, models.StageDelivered, p.Stage)
}

func TestRequestHelpUnanswered(t *testing.T) {
	_, coord := newWorld(t, gridmap.OpenLayout(1, 12),
		[]sim.AgentSpec{agentAt(c(0, 0), 3), agentAt(c(0, 11), 2)},
		[]sim.PassengerSpec{ride(c(0, 0), c(0, 10))})

	_, err := NewNegotiator(coord).RequestHelp(context.Background(), 0, 0, Exhaustive{})
	assert.True(t, errors.Is(err, ErrNoTransferPoint))
}
