// Package natsclient wraps the NATS connection and JetStream access used
// by every embargo component.
//
// A single Client is shared across the service: plain Subscribe/Publish
// carry the record stream between processors, JetStream streams provide
// the durable record log, and JetStream KV buckets back the lookup
// materialized view. KVStore layers compare-and-set semantics with retry
// on top of a bucket so concurrent writers converge without lost updates.
package natsclient
