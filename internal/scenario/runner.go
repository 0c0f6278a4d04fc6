package scenario

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"taxi-relay/internal/allocation"
	"taxi-relay/internal/config"
	"taxi-relay/internal/coordinator"
	"taxi-relay/internal/database"
	"taxi-relay/internal/distance"
	"taxi-relay/internal/gridmap"
	"taxi-relay/internal/logger"
	"taxi-relay/internal/models"
)

// Delivery modes accepted by Runner.Deliver
const (
	ModeAuto     = "auto"
	ModeSolo     = coordinator.ModeSolo
	ModeTransfer = coordinator.ModeTransfer
	ModeSet      = "set"
	ModeBidding  = "bidding"
)

// Modes lists the delivery modes
func Modes() []string {
	return []string{ModeAuto, ModeSolo, ModeTransfer, ModeSet, ModeBidding}
}

// Request selects how a scenario's passengers are delivered
type Request struct {
	Mode     string `json:"mode"`
	Strategy string `json:"strategy,omitempty"`
	// Passengers restricts the run; empty means every passenger.
	Passengers []models.PassengerID `json:"passengers,omitempty"`
	Notes      string               `json:"notes,omitempty"`
}

// Failure is a passenger the run could not deliver
type Failure struct {
	Passenger models.PassengerID `json:"passenger"`
	Error     string             `json:"error"`
}

// Outcome is the result of a delivery run
type Outcome struct {
	Run      *models.Run                   `json:"run"`
	Reports  []*coordinator.DeliveryReport `json:"reports"`
	Awards   []coordinator.Award           `json:"awards,omitempty"`
	Failures []Failure                     `json:"failures,omitempty"`
	Agents   []*models.Agent               `json:"agents"`
}

// Runner executes scenarios on fresh simulations. With a store it caches
// path costs and records every run.
type Runner struct {
	cfg   *config.Config
	store database.DataStore
	log   *slog.Logger
}

// NewRunner creates a runner; store may be nil
func NewRunner(cfg *config.Config, store database.DataStore, log *slog.Logger) *Runner {
	if cfg == nil {
		cfg = config.Default()
	}
	return &Runner{cfg: cfg, store: store, log: logger.Or(log, "runner")}
}

// Calculator answers path costs on g, through the store's cache when there
// is one
func (r *Runner) Calculator(g *gridmap.Graph) distance.PathCostCalculator {
	if r.store == nil {
		return distance.NewGraphCalculator(g, nil)
	}
	return distance.NewGraphCalculator(g, r.store.PathCosts())
}

// Deliver simulates sc from its initial state and serves the requested
// passengers in the requested mode. Passengers that cannot be served are
// reported as failures; only setup errors and cancellation abort the run.
func (r *Runner) Deliver(ctx context.Context, sc *Scenario, req Request) (*Outcome, error) {
	if req.Mode == "" {
		req.Mode = ModeAuto
	}
	if !lo.Contains(Modes(), req.Mode) {
		return nil, fmt.Errorf("unknown delivery mode %q", req.Mode)
	}
	if req.Strategy == "" {
		req.Strategy = coordinator.StrategyRouteAligned
	}
	strategy, err := coordinator.StrategyByName(req.Strategy)
	if err != nil {
		return nil, err
	}

	world, err := sc.World(r.cfg, r.log)
	if err != nil {
		return nil, fmt.Errorf("failed to build world: %w", err)
	}
	opts := coordinator.OptionsFromConfig(r.cfg)
	opts.Graph = world.Graph()
	opts.Collisions = world.Collisions()
	opts.Calculator = r.Calculator(world.Graph())
	opts.Logger = r.log
	c, err := coordinator.New(ctx, world, opts)
	if err != nil {
		return nil, err
	}

	pids := req.Passengers
	if len(pids) == 0 {
		pids = lo.Map(c.Passengers(), func(p *models.Passenger, _ int) models.PassengerID { return p.ID })
	}
	pids = lo.Uniq(pids)
	for _, pid := range pids {
		if _, ok := c.Passenger(pid); !ok {
			return nil, fmt.Errorf("%w: %d", coordinator.ErrUnknownPassenger, pid)
		}
	}

	out := &Outcome{Reports: []*coordinator.DeliveryReport{}}
	switch req.Mode {
	case ModeSet:
		reports, err := c.ServePassengerSet(ctx, pids, strategy)
		out.Reports = append(out.Reports, reports...)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			out.Failures = append(out.Failures, r.undelivered(c, pids, err)...)
		}

	case ModeBidding:
		if err := r.bid(ctx, c, pids, strategy, out); err != nil {
			return nil, err
		}

	default:
		for _, pid := range pids {
			report, err := r.deliverOne(ctx, c, pid, req.Mode, strategy)
			if report != nil {
				out.Reports = append(out.Reports, report)
			}
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				out.Failures = append(out.Failures, Failure{Passenger: pid, Error: err.Error()})
			}
		}
	}

	out.Agents = c.Agents()
	out.Run = &models.Run{
		ID:         uuid.NewString(),
		MapID:      c.Graph().ID(),
		Mode:       req.Mode,
		Strategy:   strategy.Name(),
		Agents:     len(c.Agents()),
		Passengers: len(pids),
		Delivered: len(lo.Filter(pids, func(pid models.PassengerID, _ int) bool {
			p, _ := c.Passenger(pid)
			return p.Stage == models.StageDelivered
		})),
		Ticks:     c.Ticks(),
		Reward:    c.Reward(),
		Notes:     req.Notes,
		CreatedAt: time.Now(),
	}

	if r.store != nil {
		var rows []models.RunAssignment
		for _, report := range out.Reports {
			rows = append(rows, report.Assignments(out.Run.ID)...)
		}
		if _, err := r.store.Runs().Create(ctx, out.Run, rows); err != nil {
			return nil, fmt.Errorf("failed to record run: %w", err)
		}
	}

	r.log.Info("delivery run finished",
		"run", out.Run.ID,
		"mode", req.Mode,
		"delivered", out.Run.Delivered,
		"passengers", out.Run.Passengers,
		"ticks", out.Run.Ticks)
	return out, nil
}

func (r *Runner) deliverOne(ctx context.Context, c *coordinator.Coordinator, pid models.PassengerID, mode string, strategy coordinator.TransferPointStrategy) (*coordinator.DeliveryReport, error) {
	switch mode {
	case ModeSolo:
		return c.DeliverSolo(ctx, pid)
	case ModeTransfer:
		return c.DeliverWithTransfer(ctx, pid, strategy)
	}

	capable, err := c.CapableAgents(ctx, pid)
	if err != nil {
		return nil, err
	}
	if len(capable) > 0 {
		return c.DeliverSolo(ctx, pid)
	}
	return c.DeliverWithTransfer(ctx, pid, strategy)
}

// bid allocates by negotiation and runs every award in one execution.
// Passengers nobody won are then relayed through help requests.
func (r *Runner) bid(ctx context.Context, c *coordinator.Coordinator, pids []models.PassengerID, strategy coordinator.TransferPointStrategy, out *Outcome) error {
	n := coordinator.NewNegotiator(c)
	awards, err := n.AllocateByBidding(ctx, pids)
	if err != nil {
		return err
	}
	out.Awards = awards

	result, err := n.Dispatch(ctx, awards)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}

	for _, a := range awards {
		p, _ := c.Passenger(a.Passenger)
		report := &coordinator.DeliveryReport{
			Passenger:    a.Passenger,
			Mode:         coordinator.ModeSolo,
			PickupAgent:  a.Agent,
			DropoffAgent: a.Agent,
			Delivered:    p.Stage == models.StageDelivered,
		}
		if result != nil {
			report.Ticks = result.Ticks
		}
		out.Reports = append(out.Reports, report)
		if !report.Delivered {
			reason := "not delivered"
			if err != nil {
				reason = err.Error()
			}
			out.Failures = append(out.Failures, Failure{Passenger: a.Passenger, Error: reason})
		}
	}

	awarded := lo.Map(awards, func(a coordinator.Award, _ int) models.PassengerID { return a.Passenger })
	for _, pid := range lo.Without(pids, awarded...) {
		report, err := n.RelayByHelp(ctx, pid, strategy)
		if report != nil {
			out.Reports = append(out.Reports, report)
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			out.Failures = append(out.Failures, Failure{Passenger: pid, Error: "no agent won the passenger: " + err.Error()})
			continue
		}
		if !report.Delivered {
			out.Failures = append(out.Failures, Failure{Passenger: pid, Error: "not delivered after relay"})
		}
	}
	return nil
}

// undelivered lists requested passengers that did not arrive
func (r *Runner) undelivered(c *coordinator.Coordinator, pids []models.PassengerID, cause error) []Failure {
	return lo.FilterMap(pids, func(pid models.PassengerID, _ int) (Failure, bool) {
		p, _ := c.Passenger(pid)
		return Failure{Passenger: pid, Error: cause.Error()}, p.Stage != models.StageDelivered
	})
}

// Allocate prices every agent and passenger pair of sc and solves the
// assignment by auction and exactly. A negative epsilon uses the
// configured one.
func (r *Runner) Allocate(ctx context.Context, sc *Scenario, epsilon float64) (*allocation.CostMatrix, *allocation.Comparison, error) {
	g, err := gridmap.Build(sc.Map)
	if err != nil {
		return nil, nil, err
	}
	if epsilon < 0 {
		epsilon = r.cfg.Auction.Epsilon
	}

	agents, passengers := sc.Roster()
	m, err := allocation.BuildCostMatrix(ctx, r.Calculator(g), r.cfg.Costs, agents, passengers)
	if err != nil {
		return nil, nil, err
	}
	cmp := allocation.Compare(m, epsilon)

	r.log.Debug("allocation compared",
		"agents", len(agents),
		"passengers", len(passengers),
		"auction_cost", cmp.AuctionCost,
		"optimal_cost", cmp.OptimalCost,
		"bids", cmp.Auction.Bids)
	return m, cmp, nil
}

// TransferPoints runs every built-in strategy, or just the named one, for
// a hand-off on g
func TransferPoints(g *gridmap.Graph, req coordinator.TransferRequest, name string) (map[string]*coordinator.TransferPoint, error) {
	strategies := coordinator.Strategies()
	if name != "" {
		s, err := coordinator.StrategyByName(name)
		if err != nil {
			return nil, err
		}
		strategies = []coordinator.TransferPointStrategy{s}
	}

	points := make(map[string]*coordinator.TransferPoint, len(strategies))
	var errs []error
	for _, s := range strategies {
		tp, err := s.FindTransferPoint(g, req)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		points[s.Name()] = tp
	}
	if len(points) == 0 {
		return nil, errors.Join(errs...)
	}
	return points, nil
}
