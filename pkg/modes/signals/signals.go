// Package signals detects the literal ASCII tokens the coordinator scans
// session transcripts for: Autopilot phase-completion tokens and the Ralph
// verification sub-loop's architect approval/rejection markers. Matching is
// case-insensitive and ignores occurrences inside fenced or inline code
// blocks, on the theory that a transcript quoting a token in an example
// snippet should not be mistaken for the real signal.
package signals

import "regexp"

// Phase-completion and intent tokens for the Autopilot pipeline (§4.3.3).
const (
	ExpansionComplete       = "EXPANSION_COMPLETE"
	PlanningComplete        = "PLANNING_COMPLETE"
	ExecutionComplete       = "EXECUTION_COMPLETE"
	QAComplete              = "QA_COMPLETE"
	ValidationComplete      = "VALIDATION_COMPLETE"
	AutopilotComplete       = "AUTOPILOT_COMPLETE"
	TransitionToQA          = "TRANSITION_TO_QA"
	TransitionToValidation  = "TRANSITION_TO_VALIDATION"
)

var phaseTokens = []string{
	ExpansionComplete, PlanningComplete, ExecutionComplete,
	QAComplete, ValidationComplete, AutopilotComplete,
	TransitionToQA, TransitionToValidation,
}

var (
	fencedCodeBlock = regexp.MustCompile("(?s)```.*?```")
	inlineCode      = regexp.MustCompile("`[^`\n]*`")

	architectApproved = regexp.MustCompile(`(?is)<architect-approved>.*?VERIFIED_COMPLETE.*?</architect-approved>`)

	rejectionPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\brejected\b`),
		regexp.MustCompile(`(?i)issues? found`),
		regexp.MustCompile(`(?i)not complete`),
		regexp.MustCompile(`(?i)\bmissing\b`),
		regexp.MustCompile(`(?i)(bug|error) found`),
	}
)

// StripCodeBlocks removes fenced and inline code spans so tokens quoted as
// examples inside them are not mistaken for real signals.
func StripCodeBlocks(text string) string {
	text = fencedCodeBlock.ReplaceAllString(text, "")
	text = inlineCode.ReplaceAllString(text, "")
	return text
}

// DetectPhaseToken reports the first recognized Autopilot phase token found
// in text, if any, after stripping code blocks. Matching is case-insensitive.
func DetectPhaseToken(text string) (token string, found bool) {
	clean := StripCodeBlocks(text)
	for _, tok := range phaseTokens {
		if containsFold(clean, tok) {
			return tok, true
		}
	}
	return "", false
}

// HasToken reports whether a specific token occurs in text outside of code
// blocks.
func HasToken(text, token string) bool {
	return containsFold(StripCodeBlocks(text), token)
}

// ArchitectApproved reports whether text contains the architect-approval tag
// with its VERIFIED_COMPLETE marker.
func ArchitectApproved(text string) bool {
	return architectApproved.MatchString(StripCodeBlocks(text))
}

// ArchitectRejected reports whether text contains one of the recognized
// rejection phrases.
func ArchitectRejected(text string) bool {
	clean := StripCodeBlocks(text)
	for _, p := range rejectionPatterns {
		if p.MatchString(clean) {
			return true
		}
	}
	return false
}

func containsFold(s, substr string) bool {
	return regexp.MustCompile(`(?i)` + regexp.QuoteMeta(substr)).MatchString(s)
}
