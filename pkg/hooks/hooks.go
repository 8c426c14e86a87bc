package hooks

// StopInput is the abstract stop-event payload from the host.
type StopInput struct {
	SessionID     string `json:"session_id"`
	Cwd           string `json:"cwd"`
	StopReason    string `json:"stop_reason,omitempty"`
	UserRequested bool   `json:"user_requested,omitempty"`
	Transcript    string `json:"transcript,omitempty"`
}

// StopDecision is the abstract stop-event response. Continue is always
// true — the host always proceeds; Message (if non-empty) is injected
// into the next turn.
type StopDecision struct {
	Continue bool   `json:"continue"`
	Message  string `json:"message,omitempty"`
}

// SubagentStartInput is the abstract subagent-start payload.
type SubagentStartInput struct {
	SessionID       string `json:"session_id"`
	Cwd             string `json:"cwd"`
	AgentID         string `json:"agent_id"`
	AgentType       string `json:"agent_type"`
	TaskDescription string `json:"task_description,omitempty"`
}

// SubagentStopInput is the abstract subagent-stop payload.
type SubagentStopInput struct {
	SessionID     string `json:"session_id"`
	Cwd           string `json:"cwd"`
	AgentID       string `json:"agent_id"`
	Success       *bool  `json:"success,omitempty"`
	OutputSummary string `json:"output_summary,omitempty"`
}

// SubagentHookOutput is the abstract subagent-start/stop response.
type SubagentHookOutput struct {
	Continue           bool     `json:"continue"`
	HookSpecificOutput HookInfo `json:"hookSpecificOutput"`
}

// HookInfo carries the agent-count and stale-agent payload shared by
// subagent-start and subagent-stop responses.
type HookInfo struct {
	AgentCount  int      `json:"agent_count"`
	StaleAgents []string `json:"stale_agents"`
}

// PreToolInput is the abstract pre-tool-use payload.
type PreToolInput struct {
	SessionID  string `json:"session_id"`
	Cwd        string `json:"cwd"`
	AgentID    string `json:"agent_id,omitempty"`
	ToolName   string `json:"tool_name"`
	ToolInput  string `json:"tool_input,omitempty"`
}

// PostToolInput is the abstract post-tool-use payload.
type PostToolInput struct {
	SessionID  string `json:"session_id"`
	Cwd        string `json:"cwd"`
	AgentID    string `json:"agent_id,omitempty"`
	ToolName   string `json:"tool_name"`
	DurationMs int64  `json:"duration_ms,omitempty"`
	Success    bool   `json:"success"`
	Error      string `json:"error,omitempty"`
}

// ToolDecision is the abstract pre/post-tool response.
type ToolDecision struct {
	Continue       bool   `json:"continue"`
	Message        string `json:"message,omitempty"`
	Reason         string `json:"reason,omitempty"`
	ModifiedOutput string `json:"modifiedOutput,omitempty"`
}
