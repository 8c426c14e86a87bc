// Package swarm implements the task pool: a persistent store letting N
// concurrent workers atomically claim, complete, or fail units of work, with
// lease-based recovery when a worker dies without heartbeating. Unlike the
// rest of the coordinator's state (plain JSON documents under
// pkg/statestore), the pool is a single embedded relational store
// (modernc.org/sqlite, WAL mode) per working directory, because its
// operations need real transactional CAS semantics over typed columns, not
// whole-document replacement.
package swarm
