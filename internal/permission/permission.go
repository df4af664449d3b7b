// Package permission answers capability requests from the configured grants.
package permission

import (
	"context"
	"fmt"
	"strings"
)

// Class is a capability the user must grant before it is used.
type Class string

const (
	Camera       Class = "camera"
	PhotoLibrary Class = "photo_library"
	Contacts     Class = "contacts"
)

// Classes lists every known class.
var Classes = []Class{Camera, PhotoLibrary, Contacts}

// Status is the answer to a permission request.
type Status int

const (
	Denied Status = iota
	Granted
)

func (s Status) String() string {
	if s == Granted {
		return "granted"
	}
	return "denied"
}

// Requester is the permission-request capability.
type Requester interface {
	Request(ctx context.Context, class Class) Status
}

// Gate grants exactly the configured classes.
type Gate struct {
	granted map[Class]bool
}

// NewGate parses class names; unknown names are rejected.
func NewGate(classes []string) (*Gate, error) {
	g := &Gate{granted: map[Class]bool{}}
	for _, name := range classes {
		c := Class(strings.ToLower(strings.TrimSpace(name)))
		if c == "" {
			continue
		}
		if !known(c) {
			return nil, fmt.Errorf("unknown permission class %q", name)
		}
		g.granted[c] = true
	}
	return g, nil
}

func (g *Gate) Request(_ context.Context, class Class) Status {
	if g.granted[class] {
		return Granted
	}
	return Denied
}

func known(c Class) bool {
	for _, k := range Classes {
		if k == c {
			return true
		}
	}
	return false
}
