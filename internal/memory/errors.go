package memory

import "github.com/pkg/errors"

var (
	// ErrUnsupportedKind is returned for a kind outside event/thought/chat.
	ErrUnsupportedKind = errors.New("unsupported concept kind")

	// ErrNotFound is returned when a concept id is not in the store.
	ErrNotFound = errors.New("concept not found")

	// ErrArityMismatch means a weight vector does not match its scorer.
	ErrArityMismatch = errors.New("weight vector arity does not match scorer")

	// ErrMalformedRecord is returned when persisted input lacks required keys.
	ErrMalformedRecord = errors.New("malformed memory record")
)
