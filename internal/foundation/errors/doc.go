// Package errors provides classified error primitives used across docweave.
//
// A ClassifiedError carries a category (config, xref, merge, pipeline, ...),
// a severity and a retry strategy so that callers can decide between
// aborting, degrading or retrying without string matching.
//
// Example usage:
//
//	err := errors.NewError(errors.CategoryXRef, "download reference map").
//		Retryable().
//		WithContext("url", containerURL).
//		Build()
package errors
