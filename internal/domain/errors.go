// Package domain provides shared domain-level sentinel errors.
package domain

import "errors"

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrValidation indicates malformed input rejected before any processing.
var ErrValidation = errors.New("validation failed")

// ErrExtraction indicates the entity extraction backend failed or returned
// malformed data. Processing of the fragment is aborted.
var ErrExtraction = errors.New("entity extraction failed")

// ErrClassification indicates the intent classification backend failed.
var ErrClassification = errors.New("intent classification failed")

// ErrClassificationParse indicates the classifier replied with data that
// does not parse into an intent vector. No agent may run on it.
var ErrClassificationParse = errors.New("intent classification reply is malformed")

// ErrAgentExecution marks an unexpected failure inside one specialized agent.
// It never propagates past the orchestrator.
var ErrAgentExecution = errors.New("agent execution failed")

// ErrExternalAction indicates a side-effecting external call (e.g. calendar
// booking) failed. Agents report it as an action string.
var ErrExternalAction = errors.New("external action failed")
