package types

import (
	"encoding/json"
	"time"
)

// Extra is a map of raw JSON fields. The ModeCommon.Extra field is tagged
// `json:"-"` and nothing fills it, so unknown fields in a mode document are
// dropped when the document is read and written back.
type Extra map[string]json.RawMessage

// TaskStatus is the lifecycle state of a pool task.
type TaskStatus string

const (
	TaskPending TaskStatus = "pending"
	TaskClaimed TaskStatus = "claimed"
	TaskDone    TaskStatus = "done"
	TaskFailed  TaskStatus = "failed"
)

// Task is one unit of work in the swarm pool.
type Task struct {
	ID           string     // "task-<n>", monotonic, never reused
	Description  string
	Status       TaskStatus
	ClaimerID    string     // empty when unclaimed
	ClaimedAt    *time.Time
	CompletedAt  *time.Time
	Error        string
	Result       string
	Priority     int // lower = higher priority
	Wave         int // >= 1, staged rollout grouping
	OwnedFiles   []string // glob-capable
	FilePatterns []string // glob-capable
}

// Heartbeat is one row per worker id in the pool.
type Heartbeat struct {
	WorkerID      string
	LastHeartbeat time.Time
	CurrentTaskID string
}

// PoolSession is the pool's singleton session row.
type PoolSession struct {
	SessionID    string
	Active       bool
	WorkerCount  int
	StartedAt    time.Time
	CompletedAt  *time.Time
}

// ModeCommon is the shared shape every top-level mode document embeds.
type ModeCommon struct {
	Active      bool
	SessionID   string
	ProjectPath string
	StartedAt   time.Time
	Extra       Extra `json:"-"`
}

// RalphState is the persisted state of one Ralph loop.
type RalphState struct {
	ModeCommon
	Iteration         int
	MaxIterations     int
	OriginalPrompt    string
	LinkedUltrawork   bool
	PRDMode           bool
	CurrentStoryID    string
}

// PRDStory is one user story inside a PRD task-list document.
type PRDStory struct {
	ID       string
	Title    string
	Complete bool
}

// PRD is a structured task-list document optionally driving a Ralph loop.
type PRD struct {
	Stories []PRDStory
}

// AllComplete reports whether every story in the PRD is marked complete.
// A PRD with no stories is not considered complete — there is nothing to
// drive completion off of.
func (p PRD) AllComplete() bool {
	if len(p.Stories) == 0 {
		return false
	}
	for _, s := range p.Stories {
		if !s.Complete {
			return false
		}
	}
	return true
}

// TeamPipelinePhase is the terminal-or-not phase of a team-pipeline
// coordinator external to Ralph; Ralph defers to it in its stop algorithm.
type TeamPipelinePhase string

const (
	TeamPipelineComplete  TeamPipelinePhase = "complete"
	TeamPipelineFailed    TeamPipelinePhase = "failed"
	TeamPipelineCancelled TeamPipelinePhase = "cancelled"
)

// TeamPipelineState is the coordinator-owned state Ralph reads (never
// writes) to decide whether an enclosing pipeline has already terminated.
type TeamPipelineState struct {
	Phase TeamPipelinePhase
}

// Terminal reports whether the pipeline has reached a terminal phase.
func (s TeamPipelineState) Terminal() bool {
	switch s.Phase {
	case TeamPipelineComplete, TeamPipelineFailed, TeamPipelineCancelled:
		return true
	default:
		return false
	}
}

// UltraworkState is the persisted state of one Ultrawork reinforcement loop.
type UltraworkState struct {
	ModeCommon
	ReinforcementCount int
	OriginalPrompt     string
	LinkedToRalph      bool
}

// AutopilotPhase is one of the five pipeline phases plus terminal states.
type AutopilotPhase string

const (
	PhaseExpansion  AutopilotPhase = "expansion"
	PhasePlanning   AutopilotPhase = "planning"
	PhaseExecution  AutopilotPhase = "execution"
	PhaseQA         AutopilotPhase = "qa"
	PhaseValidation AutopilotPhase = "validation"
	PhaseComplete   AutopilotPhase = "complete"
	PhaseFailed     AutopilotPhase = "failed"
)

// VerdictType is one of the three architect verdict categories required in
// the Autopilot validation phase.
type VerdictType string

const (
	VerdictFunctional VerdictType = "functional"
	VerdictSecurity   VerdictType = "security"
	VerdictQuality    VerdictType = "quality"
)

// VerdictResult is the outcome of one architect verdict.
type VerdictResult string

const (
	VerdictApproved VerdictResult = "APPROVED"
	VerdictRejected VerdictResult = "REJECTED"
	VerdictNeedsFix VerdictResult = "NEEDS_FIX"
)

// Verdict is a single architect judgement recorded during validation.
type Verdict struct {
	Type   VerdictType
	Result VerdictResult
}

// ExecutionSubRecord is the Autopilot execution-phase sub-record; it
// preserves the Ralph iteration count carried over from a prior Ralph run.
type ExecutionSubRecord struct {
	RalphIterationsPreserved int
}

// ValidationSubRecord tracks the current validation round's verdicts.
type ValidationSubRecord struct {
	Round      int
	MaxRounds  int
	Verdicts   []Verdict
}

// AutopilotState is the persisted state of one Autopilot pipeline run.
type AutopilotState struct {
	ModeCommon
	Phase            AutopilotPhase
	Iteration        int
	MaxIterations    int
	OriginalIdea     string
	Execution        *ExecutionSubRecord
	Validation       *ValidationSubRecord
	TotalAgentsSpawned int
	PhaseDurations   map[AutopilotPhase]time.Duration
}

// UltraQAState is the persisted state of one UltraQA sub-mode run.
type UltraQAState struct {
	ModeCommon
	Cycle    int
	MaxCycle int
}

// VerificationState is the Ralph architect-verification handshake record.
type VerificationState struct {
	SessionID             string
	Pending               bool
	CompletionClaim       string
	OriginalTask          string
	VerificationAttempts  int
	MaxVerificationAttempts int
	ArchitectFeedback     string
	Approved              bool
	RequestedAt           time.Time
}

// LastToolError is the scratch record the enforcer consults for retry
// guidance; records older than 60s are treated as absent by the reader.
type LastToolError struct {
	ToolName         string
	ToolInputPreview string
	Error            string
	Timestamp        time.Time
	RetryCount       int
}

// SubagentStatus is the lifecycle state of a tracked subagent.
type SubagentStatus string

const (
	SubagentRunning   SubagentStatus = "running"
	SubagentCompleted SubagentStatus = "completed"
	SubagentFailed    SubagentStatus = "failed"
)

// ToolUsage is one recorded tool invocation by a subagent.
type ToolUsage struct {
	Tool       string
	Success    bool
	DurationMs int64
	At         time.Time
}

// TokenUsage accumulates token and cost accounting for one subagent.
type TokenUsage struct {
	InputTokens     int64
	OutputTokens    int64
	CacheReadTokens int64
	CostUSD         float64
}

// SubagentRecord is one tracked subagent's full lifecycle telemetry.
type SubagentRecord struct {
	AgentID      string
	AgentType    string
	ParentMode   string // "ralph", "ultrawork", "autopilot", "swarm", "ultraqa", "none"
	StartedAt    time.Time
	UpdatedAt    time.Time // bumped on every mutation, used to arbitrate debounced merges
	Status       SubagentStatus
	CompletedAt  *time.Time
	DurationMs   int64
	TaskDescription string // truncated to 200 chars
	OutputSummary   string // truncated to 500 chars
	ToolUsage    []ToolUsage    // FIFO, <= 50
	Tokens       TokenUsage
	OwnedFiles   []string       // FIFO, deduped, <= 100
}

// ReplayEventType enumerates the kinds of events appended to a session's
// replay stream.
type ReplayEventType string

const (
	EventAgentStart      ReplayEventType = "agent_start"
	EventAgentStop       ReplayEventType = "agent_stop"
	EventToolStart       ReplayEventType = "tool_start"
	EventToolEnd         ReplayEventType = "tool_end"
	EventFileTouch       ReplayEventType = "file_touch"
	EventIntervention    ReplayEventType = "intervention"
	EventError           ReplayEventType = "error"
	EventHookFire        ReplayEventType = "hook_fire"
	EventHookResult      ReplayEventType = "hook_result"
	EventKeywordDetected ReplayEventType = "keyword_detected"
	EventSkillActivated  ReplayEventType = "skill_activated"
	EventSkillInvoked    ReplayEventType = "skill_invoked"
	EventModeChange      ReplayEventType = "mode_change"
)

// ReplayEvent is one append-only record in a session's JSONL replay stream.
type ReplayEvent struct {
	RelativeSeconds float64 // since session start, 0.1s precision
	AgentID         string  // or "system"
	Type            ReplayEventType
	Attrs           map[string]any
}

// InterventionType enumerates the kinds of suggested interventions the
// tracker can emit for a running subagent.
type InterventionType string

const (
	InterventionTimeout         InterventionType = "timeout"
	InterventionExcessiveCost   InterventionType = "excessive_cost"
	InterventionFileConflict    InterventionType = "file_conflict"
	InterventionDeadlock        InterventionType = "deadlock"
)

// Intervention is one suggested action the enforcer or an operator should take.
type Intervention struct {
	AgentID     string
	Type        InterventionType
	AutoExecute bool // true => "kill"
	Detail      string
}
