package engine

import (
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"
)

const decayCycleKey = "decay_cycle"

// RunDecayCycle applies exponential weight decay to every node and edge
// whose grace period has elapsed, measured from its last access. The
// cycle id (wall time divided by the cycle length) is persisted, so
// re-running within the same cycle is a no-op and restarts never double
// a cycle's decay. Returns the number of rows whose weight changed.
func (e *Engine) RunDecayCycle(now time.Time) (int, error) {
	cycleMs := int64(e.DecayCfg.CycleHours) * int64(time.Hour/time.Millisecond)
	if cycleMs <= 0 {
		return 0, fmt.Errorf("decay: cycle length must be positive")
	}
	nowMs := now.UnixMilli()
	cycleID := nowMs / cycleMs

	last, err := e.DB.GetMeta(decayCycleKey)
	if err != nil {
		return 0, fmt.Errorf("decay: read cycle marker: %w", err)
	}
	if last != "" {
		if prev, perr := strconv.ParseInt(last, 10, 64); perr == nil && prev >= cycleID {
			return 0, nil
		}
	}

	graceMs := int64(e.DecayCfg.GraceHours) * int64(time.Hour/time.Millisecond)
	floor := e.DecayCfg.Floor
	changed := 0

	nodes, err := e.DB.NodesForDecay()
	if err != nil {
		return 0, fmt.Errorf("decay: %w", err)
	}
	for _, n := range nodes {
		nw, ok := decayed(n.Weight, n.LastAccessed, nowMs, graceMs, cycleMs, e.DecayCfg.NodeRate, floor)
		if !ok {
			continue
		}
		if err := e.DB.SetNodeWeight(n.ID, nw); err != nil {
			slog.Warn("decay node", "id", n.ID, "err", err)
			continue
		}
		changed++
	}

	edges, err := e.DB.EdgesForDecay()
	if err != nil {
		return 0, fmt.Errorf("decay: %w", err)
	}
	for _, ed := range edges {
		nw, ok := decayed(ed.Weight, ed.LastAccessed, nowMs, graceMs, cycleMs, e.DecayCfg.EdgeRate, floor)
		if !ok {
			continue
		}
		if err := e.DB.SetEdgeWeight(ed.ID, nw); err != nil {
			slog.Warn("decay edge", "id", ed.ID, "err", err)
			continue
		}
		changed++
	}

	if err := e.DB.SetMeta(decayCycleKey, strconv.FormatInt(cycleID, 10)); err != nil {
		return changed, fmt.Errorf("decay: store cycle marker: %w", err)
	}
	return changed, nil
}

// decayed computes the new weight for one row, or reports false when no
// update is needed. Decay is continuous in elapsed time past the grace
// window and never drops below the floor.
func decayed(weight float64, lastAccessed, nowMs, graceMs, cycleMs int64, rate, floor float64) (float64, bool) {
	elapsed := nowMs - lastAccessed
	if elapsed <= graceMs {
		return 0, false
	}
	if weight <= floor {
		return 0, false
	}
	cycles := float64(elapsed-graceMs) / float64(cycleMs)
	nw := weight * math.Pow(rate, cycles)
	if nw < floor {
		nw = floor
	}
	if nw >= weight-1e-4 {
		return 0, false
	}
	return nw, true
}
