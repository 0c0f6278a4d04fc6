package coordinator

import (
	"context"
	"fmt"

	"github.com/samber/lo"

	"taxi-relay/internal/models"
)

// ExecutionResult summarizes one ExecuteAll call
type ExecutionResult struct {
	Ticks int
	// Rewards holds the reward collected by each agent, indexed by AgentID.
	Rewards []float64
	// Done is the simulation's completion flag after the last tick.
	Done bool
}

// Total returns the reward summed over all agents
func (r *ExecutionResult) Total() float64 {
	return lo.Sum(r.Rewards)
}

// busy reports whether the agent still has something to execute: queued
// steps, or a blocked step that will be re-issued
func busy(agent *models.Agent) bool {
	if len(agent.Queue) > 0 {
		return true
	}
	return agent.Previous != nil && agent.Location != agent.Previous.Coordinate
}

// ExecuteAll advances every agent in lockstep, one primitive action per
// tick, until no agent has anything left to do. Agents without a step stand
// by. After each tick the roster is refreshed from the returned snapshot.
func (c *Coordinator) ExecuteAll(ctx context.Context) (*ExecutionResult, error) {
	result := &ExecutionResult{Rewards: make([]float64, len(c.agents))}
	standby := c.actions.Index(models.ActionStandby)

	for lo.SomeBy(c.agents, busy) {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if c.maxTicks > 0 && result.Ticks >= c.maxTicks {
			c.log.Warn("execution stopped at tick limit", "ticks", result.Ticks)
			return result, fmt.Errorf("%w after %d ticks", ErrTickLimit, result.Ticks)
		}

		joint := make([]int, len(c.agents))
		for i, agent := range c.agents {
			step, ok := c.planner.NextStep(agent)
			if !ok {
				joint[i] = standby
				continue
			}
			joint[i] = c.actions.Index(step.Action)
		}

		state, rewards, done, err := c.sim.Step(ctx, joint)
		if err != nil {
			return result, fmt.Errorf("failed to step simulation at tick %d: %w", result.Ticks, err)
		}
		result.Ticks++
		c.ticks++
		for i := range rewards {
			if i < len(result.Rewards) {
				result.Rewards[i] += rewards[i]
			}
			c.reward += rewards[i]
		}
		result.Done = done
		c.done = done

		if err := c.sync(state); err != nil {
			return result, err
		}
	}

	c.log.Debug("execution finished", "ticks", result.Ticks, "reward", result.Total(), "done", result.Done)
	return result, nil
}
