// Package component provides the component model shared by all embargo
// processors and outputs: discovery metadata, lifecycle management,
// port declarations, dependency injection, and the type registry.
//
// Every runtime piece of the pipeline (normalizer, lookup table, delayed
// publisher, publishing-aware emitter, websocket output) implements
// LifecycleComponent and is built by a Factory registered with the
// Registry. The service layer drives Initialize/Start/Stop in dependency
// order and reverse order on shutdown.
package component
