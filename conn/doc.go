// Package conn is the connectivity core of a distributed spiking-network
// simulator: per-thread connection storage, the two-phase source/target
// resolution protocol, delay-extrema bookkeeping, and the runtime event
// routing entry points.
//
// # Reading Guide
//
// Start with these three files to understand the subsystem:
//   - connector.go: the fixed-layout connection records and their
//     (thread, synapse type) bucket arena
//   - source_table.go / target_table.go: the staging vs. resolved halves of
//     the distributed connectivity index and the resumable cursor
//   - manager.go: ConnectionManager, which orchestrates connect dispatch,
//     calibration, sorting and restructuring
//
// # Architecture
//
// A ConnectionManager exists per rank; there are no process-wide singletons.
// During setup, Connect instantiates a ConnBuilder from the rule registry
// (rules.go) and every realized link lands in the bucket arena of the thread
// hosting its target, with a pending entry staged in the SourceTable. The
// Resolver (resolver.go) then drives bounded rounds of NextTargetData /
// AddTarget until every rank's staging table is exhausted, after which the
// TargetTable on each source-hosting rank is the read-only routing index the
// send paths (send.go) consume. Device nodes bypass the protocol through the
// direct table in target_table_devices.go.
//
// Exclusivity comes from static partitioning: per-thread buckets are written
// only by their owning thread during setup/restructuring and are read-only
// during simulation. No locks are used anywhere in the package.
package conn
