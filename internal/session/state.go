// Package session holds the per-browser component state and the user actions
// that move it forward: selecting an image, detecting ingredients and picking
// a suggested recipe.
package session

import (
	"slices"
	"time"

	"github.com/recgen/recgen/internal/config"
	"github.com/recgen/recgen/internal/services/kitchen"
)

// Flow decides what a detect call returns and whether recipes can be picked.
type Flow string

const (
	// FlowSuggest: detect returns suggestions, picking one calls the recipe service.
	FlowSuggest Flow = config.FlowSuggest
	// FlowDirect: detect returns the recipe text itself.
	FlowDirect Flow = config.FlowDirect
)

// NoSelection is the Selected value when no suggestion has been picked.
const NoSelection = -1

// Image is the photo picked by the user.
type Image = kitchen.Image

// State is one component instance. Actions never mutate a State in place
// outside Store.Update.
type State struct {
	Image       *Image    `json:"image,omitempty"`
	Ingredients []string  `json:"ingredients"`
	Suggestions []string  `json:"suggestions"`
	Selected    int       `json:"selected"`
	Recipe      string    `json:"recipe"`
	Error       string    `json:"error,omitempty"`
	Busy        bool      `json:"busy"`
	BusyUntil   time.Time `json:"busy_until"`
	Generation  uint64    `json:"generation"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NewState returns the state of a fresh session.
func NewState() *State {
	return &State{
		Ingredients: []string{},
		Suggestions: []string{},
		Selected:    NoSelection,
	}
}

// HasImage reports whether an image has been selected.
func (s *State) HasImage() bool {
	return s.Image != nil
}

// BusyAt reports whether a remote call still holds the session at now. A busy
// flag whose deadline has passed belongs to a call that never finished.
func (s *State) BusyAt(now time.Time) bool {
	return s.Busy && now.Before(s.BusyUntil)
}

// SelectedName returns the picked suggestion, or "" when none is picked.
func (s *State) SelectedName() string {
	if s.Selected < 0 || s.Selected >= len(s.Suggestions) {
		return ""
	}
	return s.Suggestions[s.Selected]
}

// Clone returns a deep copy.
func (s *State) Clone() *State {
	c := *s
	if s.Image != nil {
		img := *s.Image
		img.Data = slices.Clone(s.Image.Data)
		c.Image = &img
	}
	c.Ingredients = cloneList(s.Ingredients)
	c.Suggestions = cloneList(s.Suggestions)
	return &c
}

// resetDerived clears everything computed from the current image.
func (s *State) resetDerived() {
	s.Ingredients = []string{}
	s.Suggestions = []string{}
	s.Selected = NoSelection
	s.Recipe = ""
	s.Error = ""
}

func cloneList(in []string) []string {
	if in == nil {
		return []string{}
	}
	return slices.Clone(in)
}
