package background

import (
	"errors"
	"strings"
	"unicode/utf8"
)

// Key is the durable storage key holding the raw reference string.
const Key = "background_image"

var (
	// ErrLoadFailure marks a failed or malformed read during Initialize.
	// It is logged only; callers never receive it.
	ErrLoadFailure = errors.New("background: load failure")

	// ErrPersistFailure wraps storage errors reported by Persist.
	ErrPersistFailure = errors.New("background: persist failure")

	// ErrMalformedReference is reported for references that could never be
	// restored by Initialize.
	ErrMalformedReference = errors.New("background: malformed reference")
)

// State is the store's position in its two-state lifecycle.
type State int

const (
	Unset State = iota
	Set
)

func (s State) String() string {
	if s == Set {
		return "set"
	}
	return "unset"
}

// Snapshot is a read-only copy of the current reference.
// An empty ImageURI means no background is set.
type Snapshot struct {
	ImageURI string `json:"imageUri,omitempty"`
}

func (s Snapshot) IsSet() bool {
	return s.ImageURI != ""
}

func (s Snapshot) State() State {
	if s.IsSet() {
		return Set
	}
	return Unset
}

// validate accepts the empty string (absent) and any non-blank UTF-8 string
// without NUL bytes.
func validate(uri string) error {
	if uri == "" {
		return nil
	}
	if !utf8.ValidString(uri) || strings.ContainsRune(uri, 0) || strings.TrimSpace(uri) == "" {
		return ErrMalformedReference
	}
	return nil
}
