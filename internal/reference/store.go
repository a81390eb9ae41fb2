// Package reference loads and holds the reference face embeddings a run
// classifies against. A store keeps one embedding per reference identity in
// insertion order; the first valid face wins and duplicates are rejected.
package reference

import (
	"errors"
	"fmt"
)

var (
	// ErrNoFacesDetected is returned when a reference image contains no face.
	ErrNoFacesDetected = errors.New("no faces detected in reference image")
	// ErrEmptyReferenceSet is returned when a reference directory yields no
	// usable embedding at all.
	ErrEmptyReferenceSet = errors.New("no valid reference faces found")
	// ErrDuplicateIdentity is returned when an identity (after normalization)
	// is already present in the store.
	ErrDuplicateIdentity = errors.New("duplicate reference identity")
)

// Face is one named reference embedding. Immutable once loaded.
type Face struct {
	Identity  string
	Embedding []float32
}

// Store holds reference faces in insertion order. Insertion order is
// significant: the similarity ranking breaks confidence ties by it.
type Store struct {
	faces []Face
	seen  map[string]struct{}
}

func NewStore() *Store {
	return &Store{seen: make(map[string]struct{})}
}

// Add appends a reference face. Identities are compared after
// normalization (lowercase, diacritics removed), so "Jiří.jpg" and
// "jiri.jpg" collide. The first entry wins.
func (s *Store) Add(identity string, embedding []float32) error {
	if len(embedding) == 0 {
		return fmt.Errorf("reference %s: empty embedding", identity)
	}
	key := NormalizeIdentity(identity)
	if _, ok := s.seen[key]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateIdentity, identity)
	}
	s.seen[key] = struct{}{}
	s.faces = append(s.faces, Face{Identity: identity, Embedding: embedding})
	return nil
}

// Faces returns the reference faces in insertion order.
func (s *Store) Faces() []Face {
	return s.faces
}

// Len returns the number of loaded reference faces.
func (s *Store) Len() int {
	return len(s.faces)
}
