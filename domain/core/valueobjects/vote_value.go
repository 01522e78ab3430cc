package valueobjects

import pkgerrors "citegraph/pkg/errors"

// VoteValue is a user's stance on a target. Zero means "no vote" and is never persisted.
type VoteValue int

const (
	VoteDown VoteValue = -1
	VoteNone VoteValue = 0
	VoteUp   VoteValue = 1
)

// ParseVoteValue validates a requested vote value.
func ParseVoteValue(raw int) (VoteValue, error) {
	switch raw {
	case -1, 0, 1:
		return VoteValue(raw), nil
	default:
		return VoteNone, pkgerrors.ErrInvalidVoteValue(raw)
	}
}

// Int returns the signed integer form
func (v VoteValue) Int() int {
	return int(v)
}

// IsNone reports whether v is the "no vote" value
func (v VoteValue) IsNone() bool {
	return v == VoteNone
}
