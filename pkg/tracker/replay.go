package tracker

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/omc-dev/coordinator/pkg/log"
	"github.com/omc-dev/coordinator/pkg/statestore"
)

const (
	replayMaxBytes    = 5 * 1024 * 1024
	replayRetainFiles = 10
)

// AppendReplayEvent appends one event to a session's JSONL replay stream.
// Once the file has reached its 5MB cap, further writes for that session
// are silent no-ops (invariant 9) — the file never exceeds cap + one
// record, since the check happens before the write that would cross it.
func AppendReplayEvent(cwd, sessionID string, ev ReplayRecord) error {
	path := statestore.SessionReplayPath(cwd, sessionID)
	if info, err := os.Stat(path); err == nil && info.Size() >= replayMaxBytes {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.Write(append(data, '\n')); err != nil {
		return err
	}

	return enforceRetention(cwd)
}

// ReplayRecord mirrors types.ReplayEvent with JSON-friendly field names.
type ReplayRecord struct {
	RelativeSeconds float64        `json:"relative_seconds"`
	AgentID         string         `json:"agent_id"`
	Type            string         `json:"type"`
	Attrs           map[string]any `json:"attrs,omitempty"`
}

func enforceRetention(cwd string) error {
	dir := statestore.StateDir(cwd)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	type fileMtime struct {
		name  string
		mtime int64
	}
	var replays []fileMtime
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), "agent-replay-") || !strings.HasSuffix(e.Name(), ".jsonl") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		replays = append(replays, fileMtime{name: e.Name(), mtime: info.ModTime().UnixNano()})
	}
	if len(replays) <= replayRetainFiles {
		return nil
	}
	sort.Slice(replays, func(i, j int) bool { return replays[i].mtime < replays[j].mtime })
	for _, f := range replays[:len(replays)-replayRetainFiles] {
		if err := os.Remove(filepath.Join(dir, f.name)); err != nil {
			log.WithComponent("tracker").Warn().Err(err).Str("file", f.name).Msg("failed to evict old replay file")
		}
	}
	return nil
}

// Summary is the derived report walked from one session's replay stream.
type Summary struct {
	ToolTotals   map[string]int
	Bottlenecks  []BottleneckEntry
	FilesTouched []string
	CycleCount   int
	CyclePattern string
}

// BottleneckEntry is one tool/agent pair averaging over 1s across at least
// two calls.
type BottleneckEntry struct {
	Tool   string
	AgentID string
	AvgMs  float64
	Calls  int
}

// GetReplaySummary walks a session's replay file and derives tool totals,
// bottlenecks, files touched, and agent-spawn cycle detection.
func GetReplaySummary(cwd, sessionID string) (Summary, error) {
	path := statestore.SessionReplayPath(cwd, sessionID)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Summary{ToolTotals: map[string]int{}}, nil
		}
		return Summary{}, err
	}
	defer f.Close()

	toolTotals := map[string]int{}
	type toolAgentKey struct{ tool, agent string }
	toolDurations := map[toolAgentKey][]float64{}
	filesSeen := map[string]bool{}
	var files []string
	var spawnOrder []string

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var rec ReplayRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			continue
		}
		switch rec.Type {
		case "tool_end":
			tool, _ := rec.Attrs["tool"].(string)
			toolTotals[tool]++
			if ms, ok := rec.Attrs["duration_ms"].(float64); ok {
				key := toolAgentKey{tool: tool, agent: rec.AgentID}
				toolDurations[key] = append(toolDurations[key], ms)
			}
		case "file_touch":
			if p, ok := rec.Attrs["path"].(string); ok && !filesSeen[p] {
				filesSeen[p] = true
				files = append(files, p)
			}
		case "agent_start":
			agentType, _ := rec.Attrs["agent_type"].(string)
			if agentType == "" {
				agentType = rec.AgentID
			}
			spawnOrder = append(spawnOrder, agentType)
		}
	}
	if err := scanner.Err(); err != nil {
		return Summary{}, err
	}

	var bottlenecks []BottleneckEntry
	for key, durations := range toolDurations {
		if len(durations) < 2 {
			continue
		}
		sum := 0.0
		for _, d := range durations {
			sum += d
		}
		avg := sum / float64(len(durations))
		if avg > 1000 {
			bottlenecks = append(bottlenecks, BottleneckEntry{Tool: key.tool, AgentID: key.agent, AvgMs: avg, Calls: len(durations)})
		}
	}
	sort.Slice(bottlenecks, func(i, j int) bool { return bottlenecks[i].AvgMs > bottlenecks[j].AvgMs })

	count, pattern := DetectCycles(spawnOrder)
	return Summary{
		ToolTotals:   toolTotals,
		Bottlenecks:  bottlenecks,
		FilesTouched: files,
		CycleCount:   count,
		CyclePattern: pattern,
	}, nil
}

// DetectCycles finds the smallest pattern length p in [2, floor(n/2)] such
// that the prefix of length p repeats contiguously from index 0 at least
// twice, and reports how many full repetitions fit plus the slash-joined
// pattern. Returns (0, "") if no such p exists.
func DetectCycles(sequence []string) (int, string) {
	n := len(sequence)
	for p := 2; p <= n/2; p++ {
		if !repeatsFromStart(sequence, p) {
			continue
		}
		return n / p, strings.Join(sequence[:p], "/")
	}
	return 0, ""
}

func repeatsFromStart(sequence []string, p int) bool {
	n := len(sequence)
	reps := n / p
	if reps < 2 {
		return false
	}
	for i := p; i < reps*p; i++ {
		if sequence[i] != sequence[i%p] {
			return false
		}
	}
	return true
}
