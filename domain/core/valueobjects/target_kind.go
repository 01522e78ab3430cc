package valueobjects

import pkgerrors "citegraph/pkg/errors"

// TargetKind identifies what a vote is attached to
type TargetKind string

const (
	TargetPaper TargetKind = "paper"
	TargetEdge  TargetKind = "edge"
)

// ParseTargetKind validates a raw target kind.
func ParseTargetKind(raw string) (TargetKind, error) {
	switch TargetKind(raw) {
	case TargetPaper, TargetEdge:
		return TargetKind(raw), nil
	default:
		return "", pkgerrors.ErrInvalidTargetKind(raw)
	}
}

// String returns the wire representation
func (k TargetKind) String() string {
	return string(k)
}

// IsValid reports whether k is one of the known kinds
func (k TargetKind) IsValid() bool {
	return k == TargetPaper || k == TargetEdge
}
