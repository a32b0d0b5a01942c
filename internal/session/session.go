// Package session keeps the per-browser state that every request rebuilds
// the map from: the uploaded files, the manual points and the last form
// inputs.
//
// A session is identified by a random ID stored in a cookie. Two stores are
// provided: an in-process [MemoryStore] for single-instance deployments and
// a [ValkeyStore] for running several instances behind a load balancer.
package session

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/SoilMap/internal/core"
)

// ErrNotFound is returned when a session ID is unknown or expired.
var ErrNotFound = errors.New("session not found")

// Store persists session state between requests.
type Store interface {
	Get(ctx context.Context, id string) (*State, error)
	Save(ctx context.Context, s *State) error
	Delete(ctx context.Context, id string) error
}

// State is everything the map is rebuilt from.
type State struct {
	ID        string             `json:"id"`
	Primary   *core.Upload       `json:"primary,omitempty"`
	Auxiliary *core.Upload       `json:"auxiliary,omitempty"`
	Manual    []core.ManualPoint `json:"manual,omitempty"`

	// Form values echoed back on the next render.
	LastManual   *core.ManualPoint `json:"last_manual,omitempty"`
	ExportFormat string            `json:"export_format,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

// New returns an empty state with a fresh ID.
func New() *State {
	return &State{ID: uuid.NewString(), UpdatedAt: time.Now()}
}

// ValidID reports whether id looks like an ID issued by New.
func ValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// RequestState returns the pipeline input for this session.
func (s *State) RequestState() core.RequestState {
	return core.RequestState{
		Primary:   s.Primary,
		Auxiliary: s.Auxiliary,
		Manual:    slices.Clone(s.Manual),
	}
}

// SetPrimary replaces the primary dataset. Manual points were placed
// relative to the old data and are dropped.
func (s *State) SetPrimary(u *core.Upload) {
	s.Primary = u
	s.Manual = nil
	s.LastManual = nil
	s.touch()
}

// SetAuxiliary replaces the auxiliary dataset.
func (s *State) SetAuxiliary(u *core.Upload) {
	s.Auxiliary = u
	s.touch()
}

// AddManual appends one manual point. Duplicates are kept.
func (s *State) AddManual(p core.ManualPoint) {
	s.Manual = append(s.Manual, p)
	s.LastManual = &p
	s.touch()
}

// Reset clears everything but the ID.
func (s *State) Reset() {
	*s = State{ID: s.ID}
	s.touch()
}

// Clone returns a deep copy of s. Upload bytes are shared since they are
// never modified in place.
func (s *State) Clone() *State {
	c := *s
	if s.Primary != nil {
		p := *s.Primary
		c.Primary = &p
	}
	if s.Auxiliary != nil {
		a := *s.Auxiliary
		c.Auxiliary = &a
	}
	c.Manual = slices.Clone(s.Manual)
	if s.LastManual != nil {
		m := *s.LastManual
		c.LastManual = &m
	}
	return &c
}

func (s *State) touch() {
	s.UpdatedAt = time.Now()
}
