package domain

import "time"

// Metadata is the fingerprint record for one node, captured after a
// successful build or import scan and compared on the next run to decide
// staleness.
type Metadata struct {
	Name InternedString `json:"name"`
	Kind NodeKind       `json:"kind"`

	// CommandHash is the hash of the command text (targets), function body
	// (import functions) or current value (import values).
	CommandHash string `json:"command_hash,omitzero"`

	// DepHash digests the sorted mapping from each direct dependency's name
	// to that dependency's current content hash.
	DepHash string `json:"dep_hash,omitzero"`

	// OutputHash is the hash of the produced value, or of the output files
	// for file-backed targets.
	OutputHash string `json:"output_hash,omitzero"`

	// Missing records that the declared output did not exist when the
	// fingerprint was captured, before any build ran.
	Missing bool `json:"missing,omitzero"`

	Timestamp time.Time `json:"timestamp,omitzero"`
}
