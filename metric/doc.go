// Package metric provides the prometheus metrics registry shared by all
// embargo components.
//
// Each component owns a small metrics struct (see the metrics.go file next
// to each processor) and registers its collectors through the Registry,
// which namespaces registrations per component and turns duplicate
// registration into a classified error rather than a panic.
//
// Metrics use the "embargo" prometheus namespace with the component name
// as subsystem.
package metric
