// Package domain defines the core business types shared across the console
// gateway.
//
// This package contains pure domain logic with ZERO external dependencies
// outside the Go standard library. All types in this package are:
//
// - Independent of infrastructure (no HTTP, no policy engine, no file I/O)
// - Technology-agnostic (no framework coupling)
// - Testable in isolation without mocks
//
// Other packages (authz, menu, server, client) implement behaviour around
// these types and depend on them. The dependency direction is always:
//
//	Infrastructure → Domain (CORRECT)
//	Domain → Infrastructure (FORBIDDEN)
package domain
