// Package autopilot implements the five-phase autonomous pipeline
// (expansion -> planning -> execution -> qa -> validation -> complete or
// failed). Phase completion is driven by ASCII tokens detected in the
// session transcript; the execution->qa and qa->validation transitions are
// transactional (pkg/transition), each composed of steps that roll back in
// reverse order if a later step fails.
package autopilot
