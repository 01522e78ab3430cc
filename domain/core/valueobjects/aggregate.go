package valueobjects

// Aggregate is the derived tally of votes on one target.
// Score always equals Up - Down.
type Aggregate struct {
	Up    int `json:"up"`
	Down  int `json:"down"`
	Score int `json:"score"`
}

// NewAggregate builds an aggregate from up and down counts
func NewAggregate(up, down int) Aggregate {
	return Aggregate{Up: up, Down: down, Score: up - down}
}

// Add returns the aggregate with one more vote of value v counted
func (a Aggregate) Add(v VoteValue) Aggregate {
	switch v {
	case VoteUp:
		return NewAggregate(a.Up+1, a.Down)
	case VoteDown:
		return NewAggregate(a.Up, a.Down+1)
	default:
		return a
	}
}

// IsZero reports whether no votes have been counted
func (a Aggregate) IsZero() bool {
	return a.Up == 0 && a.Down == 0
}
