package editor

import (
	"slices"

	"github.com/polymicro/manager/pkg/models"
)

// ConnectionSet holds the accepted connections of a pipeline in insertion order.
type ConnectionSet struct {
	connections []*models.Connection
}

// NewConnectionSet creates a set seeded with connections. Nil entries and
// repeated IDs are dropped.
func NewConnectionSet(connections ...*models.Connection) *ConnectionSet {
	s := &ConnectionSet{}
	seen := make(map[string]bool, len(connections))

	for _, c := range connections {
		if c == nil || seen[c.ID] {
			continue
		}

		seen[c.ID] = true
		cp := *c
		s.connections = append(s.connections, &cp)
	}

	return s
}

func (s *ConnectionSet) add(c *models.Connection) {
	s.connections = append(s.connections, c)
}

// Remove deletes the connection with the given ID and reports whether it existed.
func (s *ConnectionSet) Remove(id string) bool {
	before := len(s.connections)
	s.connections = slices.DeleteFunc(s.connections, func(c *models.Connection) bool {
		return c.ID == id
	})

	return len(s.connections) != before
}

// RemoveForBlock deletes every connection touching the block and returns how many were removed.
func (s *ConnectionSet) RemoveForBlock(blockID string) int {
	before := len(s.connections)
	s.connections = slices.DeleteFunc(s.connections, func(c *models.Connection) bool {
		return c.Touches(blockID)
	})

	return before - len(s.connections)
}

// Get returns the connection with the given ID.
func (s *ConnectionSet) Get(id string) (*models.Connection, bool) {
	for _, c := range s.connections {
		if c.ID == id {
			return c, true
		}
	}

	return nil, false
}

// Connections returns a copy of the slice.
func (s *ConnectionSet) Connections() []*models.Connection {
	return slices.Clone(s.connections)
}

// Outgoing returns the connections leaving blockID.
func (s *ConnectionSet) Outgoing(blockID string) []*models.Connection {
	var out []*models.Connection

	for _, c := range s.connections {
		if c.Source == blockID {
			out = append(out, c)
		}
	}

	return out
}

// Incoming returns the connections entering blockID.
func (s *ConnectionSet) Incoming(blockID string) []*models.Connection {
	var in []*models.Connection

	for _, c := range s.connections {
		if c.Target == blockID {
			in = append(in, c)
		}
	}

	return in
}

func (s *ConnectionSet) Len() int {
	return len(s.connections)
}
