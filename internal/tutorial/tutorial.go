// Package tutorial tracks per-tutorial lifecycle and step progress inside
// the progress aggregate.
package tutorial

import (
	"errors"
	"slices"
)

// Step is one step of a tutorial definition.
type Step struct {
	ID    string `yaml:"id" json:"id"`
	Title string `yaml:"title,omitempty" json:"title,omitempty"`
}

// Definition is a static tutorial loaded from the catalog.
type Definition struct {
	ID          string `yaml:"id" json:"id"`
	Title       string `yaml:"title" json:"title"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	Steps       []Step `yaml:"steps" json:"steps"`
}

// HasStep reports whether stepID is one of d's steps.
func (d Definition) HasStep(stepID string) bool {
	return slices.ContainsFunc(d.Steps, func(s Step) bool { return s.ID == stepID })
}

// Reasons a tracker operation is refused.
var (
	ErrNotStarted       = errors.New("tutorial not started")
	ErrUnknownStep      = errors.New("step is not part of the tutorial")
	ErrAlreadyCompleted = errors.New("tutorial already completed")
	ErrInvalidTime      = errors.New("time spent must be a finite non-negative number")
	ErrInvalidRating    = errors.New("rating must be between 1 and 5")
	ErrEmptyID          = errors.New("empty id")
)
