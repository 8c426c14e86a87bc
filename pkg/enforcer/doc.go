// Package enforcer implements the persistent-mode enforcer: on every host
// "stop" event it decides whether to block the stop and, if so, composes
// the continuation prompt the host should inject into the next turn. It is
// a pure function of on-disk mode state plus its input.
package enforcer
