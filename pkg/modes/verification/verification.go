package verification

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/omc-dev/coordinator/pkg/errs"
	"github.com/omc-dev/coordinator/pkg/modes/signals"
	"github.com/omc-dev/coordinator/pkg/statestore"
	"github.com/omc-dev/coordinator/pkg/types"
)

const defaultMaxAttempts = 3

func path(cwd, sessionID string) string {
	return statestore.SessionScopedPath(statestore.ModeVerification, sessionID, cwd)
}

// Load returns the verification record for a session, or a zero-value
// (Pending=false) record if none exists or it is corrupt.
func Load(cwd, sessionID string) (types.VerificationState, error) {
	var state types.VerificationState
	err := statestore.ReadJSON(path(cwd, sessionID), &state)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) || errors.Is(err, errs.ErrCorrupt) {
			return types.VerificationState{}, nil
		}
		return types.VerificationState{}, err
	}
	return state, nil
}

// Start records a new completion claim pending architect review.
func Start(cwd, sessionID, claim, originalTask string) error {
	state := types.VerificationState{
		SessionID:               sessionID,
		Pending:                 true,
		CompletionClaim:         claim,
		OriginalTask:            originalTask,
		VerificationAttempts:    0,
		MaxVerificationAttempts: defaultMaxAttempts,
		RequestedAt:             time.Now().UTC(),
	}
	return statestore.AtomicWriteJSON(path(cwd, sessionID), &state)
}

// Clear removes the verification record. Missing files are a no-op.
func Clear(cwd, sessionID string) error {
	err := os.Remove(path(cwd, sessionID))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Outcome is what the enforcer should do after a verification poll.
type Outcome struct {
	// Pending is true while verification is still outstanding (whether
	// re-prompting or rejection-continuing).
	Pending bool
	// Approved is true exactly once, the poll that detects architect
	// approval; the caller is expected to also clear Ralph and linked
	// Ultrawork.
	Approved bool
	// ForceAccepted is true when a detected rejection brings the attempt
	// count up to the maximum without any approval; the record is cleared
	// — see DESIGN.md's Open Question 3 resolution.
	ForceAccepted bool
	// Prompt is the text to inject when Pending is true.
	Prompt string
}

// Advance polls the session transcript for an architect verdict and applies
// the protocol in one step:
//   - no record pending: returns a zero Outcome (caller falls through to its
//     own continuation logic).
//   - approval detected: clears the record, Outcome.Approved = true.
//   - rejection detected: records feedback, increments attempts; if attempts
//     now >= max, force-accepts (clears the record); else re-emits a
//     rejection-continuation prompt.
//   - neither signal found: re-emits the original verification-required
//     prompt without touching the attempt counter (invariant 8).
func Advance(cwd, sessionID, transcript string) (Outcome, error) {
	state, err := Load(cwd, sessionID)
	if err != nil {
		return Outcome{}, err
	}
	if !state.Pending {
		return Outcome{}, nil
	}

	if signals.ArchitectApproved(transcript) {
		if err := Clear(cwd, sessionID); err != nil {
			return Outcome{}, err
		}
		return Outcome{Approved: true}, nil
	}

	if signals.ArchitectRejected(transcript) {
		state.VerificationAttempts++
		state.ArchitectFeedback = extractFeedback(transcript)
		if state.VerificationAttempts >= state.MaxVerificationAttempts {
			if err := Clear(cwd, sessionID); err != nil {
				return Outcome{}, err
			}
			return Outcome{ForceAccepted: true}, nil
		}
		if err := statestore.AtomicWriteJSON(path(cwd, sessionID), &state); err != nil {
			return Outcome{}, err
		}
		return Outcome{
			Pending: true,
			Prompt: fmt.Sprintf(
				"Architect rejected the completion claim (attempt %d of %d): %s\nAddress the feedback and re-claim completion when done.",
				state.VerificationAttempts, state.MaxVerificationAttempts, state.ArchitectFeedback,
			),
		}, nil
	}

	return Outcome{
		Pending: true,
		Prompt: fmt.Sprintf(
			"Verification required — attempt %d of %d. Spawn an architect to review the completion claim:\n%s",
			state.VerificationAttempts+1, state.MaxVerificationAttempts, state.CompletionClaim,
		),
	}, nil
}

// extractFeedback returns the transcript text with code blocks stripped, as
// a best-effort feedback capture; callers may replace this with a more
// targeted excerpt once the host's transcript format is known.
func extractFeedback(transcript string) string {
	clean := signals.StripCodeBlocks(transcript)
	if len(clean) > 500 {
		clean = clean[:500]
	}
	return clean
}
