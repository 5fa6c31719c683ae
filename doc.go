// Package embargo implements a deferred-publication stream processor.
//
// Records flowing through the pipeline carry a publishing policy: an
// optional "publishing" object with a boolean "private" field and an
// optional "until" instant. While a record is private, the outside world
// sees only a tombstone for its key. When the until deadline elapses,
// the record is republished through the pipeline's own input so the
// normal change-propagation path re-evaluates the policy and exposes it.
//
// # Architecture
//
// Four processors compose the pipeline over NATS subjects:
//
//	              ┌──────────────┐
//	 records.in ─▶│  Normalizer  │─▶ records.normalized
//	     ▲        └──────────────┘         │
//	     │                                 ▼
//	     │                         ┌──────────────┐
//	     │                         │ Lookup Table │─▶ records.changes
//	     │                         │  (KV bucket) │        │
//	     │                         └──────────────┘        │
//	     │                ┌────────────────────────────────┤
//	     │                ▼                                ▼
//	     │        ┌────────────────┐              ┌─────────────────┐
//	     └────────│Delayed Publisher│              │ Publishing-Aware │
//	   republish  │ key/time index │              │     Emitter      │
//	              └────────────────┘              └─────────────────┘
//	                                                       │
//	                                                       ▼
//	                                                  records.out
//
// The normalizer canonicalizes bodies so every structured document
// carries publishing.private as a boolean. The lookup table folds the
// normalized stream into a latest-value-per-key materialized view
// (a JetStream KV bucket) and emits change events. The delayed publisher
// consumes the change stream, maintains a key→deadline index and an
// ordered deadline→keys index, and scans the ordered index on a
// wall-clock tick; due records are republished into records.in. The
// emitter rewrites suppressed records as tombstones on records.out.
//
// # State
//
// Three stores hold all durable state: the lookup KV bucket and the two
// Pebble-backed deadline indexes. Restart-correctness follows from
// treating them as the sole durable state; the first scan after a
// restart catches up any deadlines that elapsed during downtime.
//
// # Packages
//
//   - message: record envelope, publishing policy, normalization
//   - processor/normalizer, processor/lookup, processor/delayedpub,
//     processor/emitter: the pipeline stages
//   - storage, storage/memstore, storage/pebblestore: index backends
//   - natsclient: NATS connection, JetStream streams and KV
//   - component, service: component model and pipeline composition
//   - output/websocket: live feed of the output stream
//   - errors, metric, config, pkg/retry, pkg/timestamp: ambient concerns
package embargo
