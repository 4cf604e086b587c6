// Package build runs documents through the Prebuild, Build and Postbuild
// phases and owns the per-build registry shared by every step.
//
// A Context is created once per build and passed explicitly to every step.
// Its sub-registries (UIDs, output paths, bookmarks, tables of contents)
// are independently safe for concurrent use; there is no global lock.
//
// Failures are contained at the narrowest boundary: a failing step for one
// document drops that document, a failing group-level step drops its group,
// and only cancellation ends the whole build.
package build
