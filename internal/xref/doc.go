// Package xref resolves UIDs to reference descriptors.
//
// A Resolver consults, in order, the in-build registry, the configured
// external containers and finally their redirection rules. External lookups
// are memoized per build; containers that fail to load are dropped once and
// never consulted again.
package xref
