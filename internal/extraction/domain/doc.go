// Package domain defines the extraction record model: the closed set of field names and
// their sensitivity classification, per-kind masking, the review state machine, the
// retention rules and the domain errors of the extraction pipeline.
package domain
