package tracker

import (
	"sort"
	"time"

	"github.com/omc-dev/coordinator/pkg/metrics"
	"github.com/omc-dev/coordinator/pkg/types"
)

const (
	timeoutAfter        = 5 * time.Minute
	killAfter           = 10 * time.Minute
	excessiveCostUSD    = 1.00
)

// FileConflict is one file owned by more than one running agent.
type FileConflict struct {
	File    string
	Owners  []string // agent ids, in order of agent start time
}

// DetectFileConflicts groups owned files across running agents and reports
// any file claimed by two or more distinct agent types.
func (t *Tracker) DetectFileConflicts() ([]FileConflict, error) {
	doc, err := t.read()
	if err != nil {
		return nil, err
	}

	type owner struct {
		agentID   string
		agentType string
	}
	byFile := map[string][]owner{}
	agentOrder := runningAgentIDsInOrder(doc)
	for _, id := range agentOrder {
		rec := doc.Agents[id]
		for _, f := range rec.OwnedFiles {
			byFile[f] = append(byFile[f], owner{agentID: id, agentType: rec.AgentType})
		}
	}

	var conflicts []FileConflict
	files := make([]string, 0, len(byFile))
	for f := range byFile {
		files = append(files, f)
	}
	sort.Strings(files)
	for _, f := range files {
		owners := byFile[f]
		distinctTypes := map[string]bool{}
		for _, o := range owners {
			distinctTypes[o.agentType] = true
		}
		if len(distinctTypes) < 2 {
			continue
		}
		ids := make([]string, len(owners))
		for i, o := range owners {
			ids[i] = o.agentID
		}
		conflicts = append(conflicts, FileConflict{File: f, Owners: ids})
	}
	return conflicts, nil
}

func runningAgentIDsInOrder(doc Document) []string {
	ids := make([]string, 0, len(doc.Agents))
	for id, rec := range doc.Agents {
		if rec.Status == types.SubagentRunning {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool {
		return doc.Agents[ids[i]].StartedAt.Before(doc.Agents[ids[j]].StartedAt)
	})
	return ids
}

// SuggestInterventions emits one intervention per applicable condition for
// every running agent: timeout (auto-kill past 10 min), excessive cost,
// and file conflicts (all but the first owner of a contested file).
func (t *Tracker) SuggestInterventions() ([]types.Intervention, error) {
	doc, err := t.read()
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()

	var out []types.Intervention
	for _, id := range runningAgentIDsInOrder(doc) {
		rec := doc.Agents[id]
		age := now.Sub(rec.StartedAt)
		if age > timeoutAfter {
			out = append(out, types.Intervention{
				AgentID:     id,
				Type:        types.InterventionTimeout,
				AutoExecute: age > killAfter,
				Detail:      "running past the timeout threshold",
			})
		}
		if rec.Tokens.CostUSD > excessiveCostUSD {
			out = append(out, types.Intervention{
				AgentID: id,
				Type:    types.InterventionExcessiveCost,
				Detail:  "cumulative cost exceeds the per-agent budget",
			})
		}
	}

	conflicts, err := t.DetectFileConflicts()
	if err != nil {
		return nil, err
	}
	for _, c := range conflicts {
		for _, owner := range c.Owners[1:] {
			out = append(out, types.Intervention{
				AgentID: owner,
				Type:    types.InterventionFileConflict,
				Detail:  "file " + c.File + " is also owned by " + c.Owners[0],
			})
		}
	}

	for _, iv := range out {
		metrics.InterventionsTotal.WithLabelValues(string(iv.Type)).Inc()
	}
	return out, nil
}

// CleanupStaleAgents marks every running agent stale for more than 5
// minutes as failed.
func (t *Tracker) CleanupStaleAgents() (int, error) {
	doc, err := t.read()
	if err != nil {
		return 0, err
	}
	now := time.Now().UTC()

	var staleIDs []string
	for id, rec := range doc.Agents {
		if rec.Status == types.SubagentRunning && now.Sub(rec.StartedAt) > staleAfter {
			staleIDs = append(staleIDs, id)
		}
	}
	if len(staleIDs) == 0 {
		return 0, nil
	}

	for _, id := range staleIDs {
		success := false
		if err := t.OnSubagentStop(StopInput{AgentID: id, Success: &success, OutputSummary: "stale — exceeded timeout"}); err != nil {
			return 0, err
		}
	}
	return len(staleIDs), nil
}
