// Package ultrawork implements the Ultrawork reinforcement mode: a lighter
// mode that unconditionally blocks "stop" while active — its only exit is
// explicit deactivation, because transient tool errors must never end a
// session on their own.
package ultrawork
