// Package ultraqa implements the UltraQA sub-mode: a QA-focused mode
// started during Autopilot's qa phase, capped at a maximum number of
// cycles and mutually exclusive with Ralph via the mode registry.
package ultraqa
