// Package model holds the in-flight document representation shared by the
// pipeline, the processors and the merge engine.
package model
