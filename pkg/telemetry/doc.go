// Package telemetry wires OpenTelemetry exporters and meters for the
// console gateway.
//
// It centralises trace provider setup, applies gateway-specific resource
// attributes, and offers metric helpers that record entitlement decisions,
// menu rebuilds and panel refreshes so operators can correlate what the
// console served with who asked for it.
package telemetry
