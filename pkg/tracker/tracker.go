package tracker

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/omc-dev/coordinator/pkg/errs"
	"github.com/omc-dev/coordinator/pkg/metrics"
	"github.com/omc-dev/coordinator/pkg/modes/registry"
	"github.com/omc-dev/coordinator/pkg/statestore"
	"github.com/omc-dev/coordinator/pkg/types"
)

const (
	docName  = "subagent-tracking.json"
	lockName = "subagent-tracker"
	debounce = 100 * time.Millisecond
)

// Tracker is the process-local handle onto one working directory's
// subagent-tracking document. Every mutation goes through its debounced,
// lock-protected writer; every query reads the current on-disk document.
type Tracker struct {
	cwd    string
	writer *statestore.DebouncedMergeWriter[Document]
}

// New opens a Tracker for cwd.
func New(cwd string) *Tracker {
	return &Tracker{
		cwd:    cwd,
		writer: statestore.NewDebouncedMergeWriter(cwd, docName, lockName, debounce, merge),
	}
}

// FlushNow forces any pending update to disk immediately; callers that need
// a synchronous guarantee (e.g. end of a hook invocation) should call this
// before exiting.
func (t *Tracker) FlushNow() error {
	return t.writer.FlushNow()
}

func (t *Tracker) read() (Document, error) {
	var doc Document
	err := statestore.ReadJSON(statestore.DocPath(t.cwd, docName), &doc)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) || errors.Is(err, errs.ErrCorrupt) {
			return emptyDocument(), nil
		}
		return Document{}, err
	}
	if doc.Agents == nil {
		doc.Agents = map[string]types.SubagentRecord{}
	}
	return doc, nil
}

// StartInput is the parameters for onSubagentStart.
type StartInput struct {
	AgentID         string
	AgentType       string
	SessionID       string
	TaskDescription string
}

// StartResult is the hookSpecificOutput payload for subagent-start.
type StartResult struct {
	RunningCount int
	StaleAgents  []string
}

// OnSubagentStart records a new running agent and reports the current
// running count plus any agents that look stale.
func (t *Tracker) OnSubagentStart(in StartInput) (StartResult, error) {
	now := time.Now().UTC()
	parent := detectParentMode(t.cwd, in.SessionID)
	disk, err := t.read()
	if err != nil {
		return StartResult{}, err
	}

	t.writer.Update(func(pending *Document) {
		if pending.Agents == nil {
			pending.Agents = map[string]types.SubagentRecord{}
		}
		pending.Agents[in.AgentID] = types.SubagentRecord{
			AgentID:         in.AgentID,
			AgentType:       in.AgentType,
			ParentMode:      parent,
			StartedAt:       now,
			UpdatedAt:       now,
			Status:          types.SubagentRunning,
			TaskDescription: truncate(in.TaskDescription, maxTaskDescription),
		}
		if disk.TotalSpawned > pending.TotalSpawned {
			pending.TotalSpawned = disk.TotalSpawned
		}
		pending.TotalSpawned++
		pending.LastUpdated = now
	})
	if err := t.writer.FlushNow(); err != nil {
		return StartResult{}, err
	}
	metrics.SubagentsSpawnedTotal.Inc()
	metrics.SubagentsRunning.Inc()

	doc, err := t.read()
	if err != nil {
		return StartResult{}, err
	}
	running, stale := 0, []string{}
	for id, rec := range doc.Agents {
		if rec.Status != types.SubagentRunning {
			continue
		}
		running++
		if now.Sub(rec.StartedAt) > staleAfter {
			stale = append(stale, id)
		}
	}
	return StartResult{RunningCount: running, StaleAgents: stale}, nil
}

// StopInput is the parameters for onSubagentStop.
type StopInput struct {
	AgentID       string
	Success       *bool // nil => default true
	OutputSummary string
}

// OnSubagentStop finalizes a running agent's record.
func (t *Tracker) OnSubagentStop(in StopInput) error {
	now := time.Now().UTC()
	success := true
	if in.Success != nil {
		success = *in.Success
	}

	var found bool
	t.writer.Update(func(pending *Document) {
		if pending.Agents == nil {
			pending.Agents = map[string]types.SubagentRecord{}
		}
		rec, ok := pending.Agents[in.AgentID]
		if !ok {
			// the record lives only on disk; merge picks it up via the
			// newer-wins rule once we write a completed stub keyed the
			// same id, so read it forward first.
			disk, _ := t.read()
			if d, ok2 := disk.Agents[in.AgentID]; ok2 {
				rec, ok = d, true
			}
		}
		if !ok {
			return
		}
		found = true
		rec.Status = types.SubagentCompleted
		if !success {
			rec.Status = types.SubagentFailed
		}
		rec.CompletedAt = &now
		rec.DurationMs = now.Sub(rec.StartedAt).Milliseconds()
		rec.OutputSummary = truncate(in.OutputSummary, maxOutputSummary)
		rec.UpdatedAt = now
		pending.Agents[in.AgentID] = rec
		pending.LastUpdated = now
	})
	if err := t.writer.FlushNow(); err != nil {
		return err
	}
	if found {
		metrics.SubagentsRunning.Dec()
		metrics.SubagentsCompletedTotal.WithLabelValues(string(boolOutcome(success))).Inc()
	}
	return nil
}

func boolOutcome(success bool) types.SubagentStatus {
	if success {
		return types.SubagentCompleted
	}
	return types.SubagentFailed
}

// RecordToolUsage appends a tool-usage entry with no explicit timing.
func (t *Tracker) RecordToolUsage(agentID, tool string, success bool) error {
	return t.RecordToolUsageWithTiming(agentID, tool, 0, success)
}

// RecordToolUsageWithTiming appends a timed tool-usage entry, bounded FIFO
// at maxToolUsage per agent.
func (t *Tracker) RecordToolUsageWithTiming(agentID, tool string, durationMs int64, success bool) error {
	now := time.Now().UTC()
	t.writer.Update(func(pending *Document) {
		rec := t.resolveAgent(pending, agentID)
		rec.ToolUsage = append(rec.ToolUsage, types.ToolUsage{Tool: tool, Success: success, DurationMs: durationMs, At: now})
		if len(rec.ToolUsage) > maxToolUsage {
			rec.ToolUsage = rec.ToolUsage[len(rec.ToolUsage)-maxToolUsage:]
		}
		rec.UpdatedAt = now
		pending.Agents[agentID] = rec
		pending.LastUpdated = now
	})
	return t.writer.FlushNow()
}

// UpdateTokenUsage accumulates token and cost counters for an agent.
func (t *Tracker) UpdateTokenUsage(agentID string, partial types.TokenUsage) error {
	now := time.Now().UTC()
	t.writer.Update(func(pending *Document) {
		rec := t.resolveAgent(pending, agentID)
		rec.Tokens.InputTokens += partial.InputTokens
		rec.Tokens.OutputTokens += partial.OutputTokens
		rec.Tokens.CacheReadTokens += partial.CacheReadTokens
		rec.Tokens.CostUSD += partial.CostUSD
		rec.UpdatedAt = now
		pending.Agents[agentID] = rec
		pending.LastUpdated = now
	})
	return t.writer.FlushNow()
}

// RecordFileOwnership appends a normalized, deduped, bounded file path to
// an agent's ownership list.
func (t *Tracker) RecordFileOwnership(agentID, absPath string) error {
	now := time.Now().UTC()
	rel := normalizeOwnedPath(t.cwd, absPath)
	t.writer.Update(func(pending *Document) {
		rec := t.resolveAgent(pending, agentID)
		for _, existing := range rec.OwnedFiles {
			if existing == rel {
				pending.Agents[agentID] = rec
				return
			}
		}
		rec.OwnedFiles = append(rec.OwnedFiles, rel)
		if len(rec.OwnedFiles) > maxOwnedFiles {
			rec.OwnedFiles = rec.OwnedFiles[len(rec.OwnedFiles)-maxOwnedFiles:]
		}
		rec.UpdatedAt = now
		pending.Agents[agentID] = rec
		pending.LastUpdated = now
	})
	return t.writer.FlushNow()
}

// resolveAgent fetches an agent record from pending, falling back to disk
// if this is the first mutation pending sees for it this invocation.
func (t *Tracker) resolveAgent(pending *Document, agentID string) types.SubagentRecord {
	if pending.Agents == nil {
		pending.Agents = map[string]types.SubagentRecord{}
	}
	if rec, ok := pending.Agents[agentID]; ok {
		return rec
	}
	disk, _ := t.read()
	if rec, ok := disk.Agents[agentID]; ok {
		return rec
	}
	return types.SubagentRecord{AgentID: agentID, Status: types.SubagentRunning, StartedAt: time.Now().UTC()}
}

func normalizeOwnedPath(cwd, absPath string) string {
	rel, err := filepath.Rel(cwd, absPath)
	if err != nil {
		rel = absPath
	}
	return filepath.ToSlash(rel)
}

func detectParentMode(cwd, sessionID string) string {
	if registry.IsActive(statestore.ModeUltraQA, cwd, sessionID) {
		return "ultraqa"
	}
	if registry.IsActive(statestore.ModeAutopilot, cwd, sessionID) {
		return "autopilot"
	}
	if _, err := os.Stat(statestore.DocPath(cwd, "swarm.db")); err == nil {
		return "swarm"
	}
	if registry.IsActive(statestore.ModeUltrawork, cwd, sessionID) {
		return "ultrawork"
	}
	if registry.IsActive(statestore.ModeRalph, cwd, sessionID) {
		return "ralph"
	}
	return "none"
}
