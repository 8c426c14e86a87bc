package tracker

import (
	"time"

	"github.com/omc-dev/coordinator/pkg/types"
)

const (
	maxToolUsage       = 50
	maxOwnedFiles      = 100
	maxOutputSummary   = 500
	maxTaskDescription = 200
	maxCompletedBuffer = 100
	staleAfter         = 5 * time.Minute
)

// Document is the full subagent-tracking.json document.
type Document struct {
	Agents       map[string]types.SubagentRecord
	TotalSpawned int
	LastUpdated  time.Time
}

func emptyDocument() Document {
	return Document{Agents: map[string]types.SubagentRecord{}}
}

// merge combines a disk-resident document with pending in-memory updates.
// Per agent, the side with the newer UpdatedAt wins outright — this is the
// "merge preserves newer" invariant, not a field-by-field splice. The
// spawn counter takes the max of both sides rather than summing, since
// both already observed every spawn up to their own last write.
func merge(disk, pending Document) Document {
	out := Document{
		Agents:       map[string]types.SubagentRecord{},
		TotalSpawned: maxInt(disk.TotalSpawned, pending.TotalSpawned),
		LastUpdated:  laterTime(disk.LastUpdated, pending.LastUpdated),
	}
	for id, rec := range disk.Agents {
		out.Agents[id] = rec
	}
	for id, rec := range pending.Agents {
		existing, ok := out.Agents[id]
		if !ok || rec.UpdatedAt.After(existing.UpdatedAt) {
			out.Agents[id] = rec
		}
	}
	evictOldestCompleted(out.Agents)
	return out
}

func evictOldestCompleted(agents map[string]types.SubagentRecord) {
	terminal := make([]string, 0, len(agents))
	for id, rec := range agents {
		if rec.Status != types.SubagentRunning {
			terminal = append(terminal, id)
		}
	}
	for len(terminal) > maxCompletedBuffer {
		oldestID, oldestAt := "", time.Time{}
		for i, id := range terminal {
			at := completionTime(agents[id])
			if i == 0 || at.Before(oldestAt) {
				oldestID, oldestAt = id, at
			}
		}
		delete(agents, oldestID)
		terminal = removeString(terminal, oldestID)
	}
}

func completionTime(rec types.SubagentRecord) time.Time {
	if rec.CompletedAt != nil {
		return *rec.CompletedAt
	}
	return rec.StartedAt
}

func removeString(s []string, v string) []string {
	out := s[:0]
	for _, x := range s {
		if x != v {
			out = append(out, x)
		}
	}
	return out
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func laterTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
