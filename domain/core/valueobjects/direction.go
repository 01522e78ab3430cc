package valueobjects

import pkgerrors "citegraph/pkg/errors"

// Direction selects which citations count as adjacent to a paper.
type Direction string

const (
	// DirectionBoth follows citations in either direction
	DirectionBoth Direction = "both"
	// DirectionOutgoing follows citations the paper makes
	DirectionOutgoing Direction = "outgoing"
	// DirectionIncoming follows citations the paper receives
	DirectionIncoming Direction = "incoming"
)

// ParseDirection validates a raw direction. An empty string yields fallback.
func ParseDirection(raw string, fallback Direction) (Direction, error) {
	if raw == "" {
		raw = string(fallback)
	}
	switch Direction(raw) {
	case DirectionBoth, DirectionOutgoing, DirectionIncoming:
		return Direction(raw), nil
	default:
		return "", pkgerrors.ErrInvalidDirection(raw)
	}
}

// FollowsOutgoing reports whether citations made by a paper are adjacent
func (d Direction) FollowsOutgoing() bool {
	return d == DirectionBoth || d == DirectionOutgoing
}

// FollowsIncoming reports whether citations received by a paper are adjacent
func (d Direction) FollowsIncoming() bool {
	return d == DirectionBoth || d == DirectionIncoming
}
