package coordinator

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"taxi-relay/internal/models"
)

// MessageType identifies the kind of message being sent.
type MessageType string

const (
	// MsgBid carries an agent's cost for serving a passenger
	MsgBid MessageType = "bid"
	// MsgHelpRequest asks other agents to take over a passenger
	MsgHelpRequest MessageType = "help_request"
	// MsgTransferOffer answers a help request with a hand-off point
	MsgTransferOffer MessageType = "transfer_offer"
)

// Message is implemented by every payload that travels through a Mailbox.
type Message interface {
	Type() MessageType
	Sender() models.AgentID
}

// Envelope wraps a message with delivery metadata.
type Envelope struct {
	ID        string
	To        models.AgentID
	Message   Message
	Timestamp time.Time
}

// BidMessage is an agent's cost to serve a passenger alone.
type BidMessage struct {
	From      models.AgentID
	Passenger models.PassengerID
	Cost      float64
}

func (m BidMessage) Type() MessageType { return MsgBid }
func (m BidMessage) Sender() models.AgentID { return m.From }

// HelpRequest is broadcast by an agent that holds a passenger it cannot
// deliver on its remaining fuel.
type HelpRequest struct {
	From        models.AgentID
	Passenger   models.PassengerID
	Location    models.Coordinate
	Fuel        int
	Destination models.Coordinate
}

func (m HelpRequest) Type() MessageType { return MsgHelpRequest }
func (m HelpRequest) Sender() models.AgentID { return m.From }

// TransferOffer proposes a hand-off point in reply to a HelpRequest.
type TransferOffer struct {
	From      models.AgentID
	To        models.AgentID
	RequestID string
	Passenger models.PassengerID
	Point     TransferPoint
}

func (m TransferOffer) Type() MessageType { return MsgTransferOffer }
func (m TransferOffer) Sender() models.AgentID { return m.From }

// Mailbox holds one inbound queue per agent. Messages are read once per
// planning round with Drain.
type Mailbox struct {
	mu     sync.Mutex
	queues map[models.AgentID][]Envelope
	sent   int
}

// NewMailbox creates an empty mailbox.
func NewMailbox() *Mailbox {
	return &Mailbox{queues: make(map[models.AgentID][]Envelope)}
}

// Send queues msg for one agent and returns the envelope ID.
func (m *Mailbox) Send(to models.AgentID, msg Message) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	env := Envelope{
		ID:        uuid.NewString(),
		To:        to,
		Message:   msg,
		Timestamp: time.Now(),
	}
	m.queues[to] = append(m.queues[to], env)
	m.sent++
	return env.ID
}

// Broadcast queues msg for every recipient except the sender.
func (m *Mailbox) Broadcast(recipients []models.AgentID, msg Message) []string {
	ids := make([]string, 0, len(recipients))
	for _, to := range recipients {
		if to == msg.Sender() {
			continue
		}
		ids = append(ids, m.Send(to, msg))
	}
	return ids
}

// Drain removes and returns everything queued for an agent, oldest first.
func (m *Mailbox) Drain(agent models.AgentID) []Envelope {
	m.mu.Lock()
	defer m.mu.Unlock()

	msgs := m.queues[agent]
	delete(m.queues, agent)
	return msgs
}

// Pending returns the number of undelivered messages for an agent.
func (m *Mailbox) Pending(agent models.AgentID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queues[agent])
}

// Sent returns the number of messages sent through the mailbox.
func (m *Mailbox) Sent() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sent
}
