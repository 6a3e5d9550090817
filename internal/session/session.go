// Package session owns the daemon side of the handshake: borrowing the
// document from a waiting client, exposing it to one shell command, and
// handing it back.
//
// A Controller moves through
//
//	Idle → Activating → Connecting → Loaded → UserCodeRunning → Finalizing → Idle
//
// once per shell command. At most one Session is open at a time; the
// Manager holds that single slot and panics on misuse, since a second
// concurrent session can only come from a programming error.
package session

import (
	"fmt"

	"github.com/itsmostafa/inkbridge/internal/document"
	"github.com/itsmostafa/inkbridge/internal/rendezvous"
)

// Session is one borrowed-document window. The exported fields are what
// user code sees; user code may replace Guides, UserArgs and Metadata
// wholesale, and Finalize merges them back into SVGRoot.
type Session struct {
	ID       string
	SVGRoot  *document.Document
	Guides   []document.Guide
	UserArgs string
	Canvas   document.Canvas
	Metadata document.Metadata
	Options  document.Options

	conn *rendezvous.Conn
}

// Changed reports whether the document differs from its loaded state.
// Guide and metadata edits count only after Finalize has merged them.
func (s *Session) Changed() (bool, error) {
	return s.SVGRoot.HasChanged()
}

// Unit returns the size of one unit ("mm", "cm", "pt", "px", "in") in the
// document's user units.
func (s *Session) Unit(name string) float64 {
	return s.SVGRoot.UnitToUser(name)
}

func (s *Session) String() string {
	return fmt.Sprintf("session %s (%s)", s.ID, s.Options.InputFile)
}

// Manager holds the process-wide session slot.
type Manager struct {
	current *Session
}

// NewManager returns a Manager with an empty slot.
func NewManager() *Manager {
	return &Manager{}
}

// Current returns the open session, or nil.
func (m *Manager) Current() *Session {
	return m.current
}

// Claim puts s in the slot. Panics if the slot is taken.
func (m *Manager) Claim(s *Session) {
	if m.current != nil {
		panic(fmt.Sprintf("session: claiming %s while %s is open", s, m.current))
	}
	m.current = s
}

// Release empties the slot. Panics if s is not the open session.
func (m *Manager) Release(s *Session) {
	if m.current != s {
		panic(fmt.Sprintf("session: releasing %s, which is not the open session", s))
	}
	m.current = nil
}
