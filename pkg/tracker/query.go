package tracker

import (
	"sort"
	"time"

	"github.com/omc-dev/coordinator/pkg/types"
)

// CountByStatus returns the number of tracked agents per status.
func (t *Tracker) CountByStatus() (map[types.SubagentStatus]int, error) {
	doc, err := t.read()
	if err != nil {
		return nil, err
	}
	counts := map[types.SubagentStatus]int{}
	for _, rec := range doc.Agents {
		counts[rec.Status]++
	}
	return counts, nil
}

// CountByType returns the number of tracked agents per agent type.
func (t *Tracker) CountByType() (map[string]int, error) {
	doc, err := t.read()
	if err != nil {
		return nil, err
	}
	counts := map[string]int{}
	for _, rec := range doc.Agents {
		counts[rec.AgentType]++
	}
	return counts, nil
}

// ToolStat is one tool's aggregate timing stats for an agent.
type ToolStat struct {
	Tool     string
	Count    int
	AvgMs    float64
	MaxMs    int64
	TotalMs  int64
	Failures int
}

// Performance is one agent's derived performance report.
type Performance struct {
	AgentID       string
	Tools         []ToolStat
	BottleneckTool string // highest avg among tools called >= 2 times
}

// AgentPerformance computes tool-timing stats for one agent.
func (t *Tracker) AgentPerformance(agentID string) (Performance, error) {
	doc, err := t.read()
	if err != nil {
		return Performance{}, err
	}
	rec, ok := doc.Agents[agentID]
	if !ok {
		return Performance{AgentID: agentID}, nil
	}
	return computePerformance(rec), nil
}

func computePerformance(rec types.SubagentRecord) Performance {
	byTool := map[string]*ToolStat{}
	order := []string{}
	for _, u := range rec.ToolUsage {
		s, ok := byTool[u.Tool]
		if !ok {
			s = &ToolStat{Tool: u.Tool}
			byTool[u.Tool] = s
			order = append(order, u.Tool)
		}
		s.Count++
		s.TotalMs += u.DurationMs
		if u.DurationMs > s.MaxMs {
			s.MaxMs = u.DurationMs
		}
		if !u.Success {
			s.Failures++
		}
	}
	sort.Strings(order)
	stats := make([]ToolStat, 0, len(order))
	bottleneck := ""
	bestAvg := -1.0
	for _, tool := range order {
		s := byTool[tool]
		s.AvgMs = float64(s.TotalMs) / float64(s.Count)
		stats = append(stats, *s)
		if s.Count >= 2 && s.AvgMs > bestAvg {
			bestAvg = s.AvgMs
			bottleneck = tool
		}
	}
	return Performance{AgentID: rec.AgentID, Tools: stats, BottleneckTool: bottleneck}
}

// ParallelEfficiency returns round(active / totalRunning * 100), where
// active excludes agents stale for more than 5 minutes. Returns 0 when no
// agents are running.
func (t *Tracker) ParallelEfficiency() (int, error) {
	doc, err := t.read()
	if err != nil {
		return 0, err
	}
	now := time.Now().UTC()
	total, active := 0, 0
	for _, rec := range doc.Agents {
		if rec.Status != types.SubagentRunning {
			continue
		}
		total++
		if now.Sub(rec.StartedAt) <= staleAfter {
			active++
		}
	}
	if total == 0 {
		return 0, nil
	}
	return int(float64(active) / float64(total) * 100.0 + 0.5), nil
}
