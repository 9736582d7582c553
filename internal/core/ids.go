// Package core holds the data model shared by every indexing and retrieval
// component: node/edge/chunk types, NodeId derivation, and the error
// taxonomy used across the pipeline.
package core

import (
	"crypto/sha256"
	"encoding/binary"

	"github.com/google/uuid"
)

// NodeId is a 128-bit opaque node identifier. When (project, qualified_name,
// file_path, start_line) are all available it is derived deterministically
// so re-indexing the same symbol produces the same id; otherwise it falls
// back to a random UUID.
type NodeId uuid.UUID

// Nil is the zero-value NodeId.
var Nil NodeId

func (id NodeId) String() string {
	return uuid.UUID(id).String()
}

// IsNil reports whether id is the zero value.
func (id NodeId) IsNil() bool {
	return id == Nil
}

// NewRandomNodeId returns a random NodeId for content with insufficient
// inputs to derive a stable one (e.g. a synthetic node with no location).
func NewRandomNodeId() NodeId {
	return NodeId(uuid.New())
}

// DeterministicNodeId derives a stable NodeId from the node's identifying
// tuple. The derivation uses SHA-256 over the UTF-8 concatenation of the
// fields, truncated to 16 bytes and shaped into a UUIDv5-like value so the
// same inputs always produce the same id, and different inputs produce a
// different one with overwhelming probability.
func DeterministicNodeId(projectID, qualifiedName, filePath string, startLine uint32) NodeId {
	h := sha256.New()
	h.Write([]byte(projectID))
	h.Write([]byte{0})
	h.Write([]byte(qualifiedName))
	h.Write([]byte{0})
	h.Write([]byte(filePath))
	h.Write([]byte{0})
	var lineBuf [4]byte
	binary.BigEndian.PutUint32(lineBuf[:], startLine)
	h.Write(lineBuf[:])

	sum := h.Sum(nil)
	var id uuid.UUID
	copy(id[:], sum[:16])
	// Set version 5 (name-based, SHA-1-alike derivation) and RFC 4122 variant
	// bits so the id is well-formed even though it didn't come from the
	// stdlib uuid.NewSHA1 path.
	id[6] = (id[6] & 0x0f) | 0x50
	id[8] = (id[8] & 0x3f) | 0x80
	return NodeId(id)
}

// CanDeriveDeterministicId reports whether enough inputs are present to use
// DeterministicNodeId instead of a random fallback (invariant in §3: NodeId
// is deterministic from (project_id, qualified_name, file_path, start_line)
// "when available").
func CanDeriveDeterministicId(projectID, qualifiedName, filePath string) bool {
	return projectID != "" && qualifiedName != "" && filePath != ""
}
