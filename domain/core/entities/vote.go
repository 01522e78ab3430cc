package entities

import (
	"strings"
	"time"

	"citegraph/domain/core/valueobjects"
	pkgerrors "citegraph/pkg/errors"
)

// Vote is one user's stored stance on one target. Value is never VoteNone.
type Vote struct {
	ID         string                  `json:"id"`
	UserID     string                  `json:"user_id"`
	TargetKind valueobjects.TargetKind `json:"target_kind"`
	TargetID   string                  `json:"target_id"`
	Value      valueobjects.VoteValue  `json:"value"`
	UpdatedAt  time.Time               `json:"updated_at"`
}

// VoteRequest is a validated request to change a user's vote
type VoteRequest struct {
	UserID     string
	TargetKind valueobjects.TargetKind
	TargetID   string
	Value      valueobjects.VoteValue
}

// NewVoteRequest validates raw vote input. The value and kind are checked
// first so that malformed requests never reach storage.
func NewVoteRequest(userID, kind, targetID string, value int) (VoteRequest, error) {
	v, err := valueobjects.ParseVoteValue(value)
	if err != nil {
		return VoteRequest{}, err
	}
	k, err := valueobjects.ParseTargetKind(kind)
	if err != nil {
		return VoteRequest{}, err
	}

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return VoteRequest{}, pkgerrors.NewValidationError("user id is required")
	}
	targetID = strings.TrimSpace(targetID)
	if targetID == "" {
		return VoteRequest{}, pkgerrors.NewValidationError("target id is required")
	}

	return VoteRequest{UserID: userID, TargetKind: k, TargetID: targetID, Value: v}, nil
}

// VoteAction is the storage mutation a vote request resolves to
type VoteAction int

const (
	// VoteActionNone leaves storage untouched
	VoteActionNone VoteAction = iota
	// VoteActionInsert stores a new vote
	VoteActionInsert
	// VoteActionUpdate changes the stored value in place
	VoteActionUpdate
	// VoteActionDelete removes the stored vote
	VoteActionDelete
)

func (a VoteAction) String() string {
	switch a {
	case VoteActionInsert:
		return "insert"
	case VoteActionUpdate:
		return "update"
	case VoteActionDelete:
		return "delete"
	default:
		return "none"
	}
}

// ResolveVote is the vote state machine. Given the currently stored value
// (VoteNone when absent) and the requested value it returns the mutation to
// perform and the user's resulting value.
//
//	absent, 0        -> none,   0
//	absent, v        -> insert, v
//	v, v             -> delete, 0  (toggle off)
//	v, 0             -> delete, 0
//	v, w (w != v)    -> update, w
func ResolveVote(current, requested valueobjects.VoteValue) (VoteAction, valueobjects.VoteValue) {
	switch {
	case current.IsNone() && requested.IsNone():
		return VoteActionNone, valueobjects.VoteNone
	case current.IsNone():
		return VoteActionInsert, requested
	case requested == current, requested.IsNone():
		return VoteActionDelete, valueobjects.VoteNone
	default:
		return VoteActionUpdate, requested
	}
}

// NeedsTarget reports whether the action must verify that the target exists.
// Deletes do not, so votes on a vanished target can still be cleared.
func (a VoteAction) NeedsTarget() bool {
	return a == VoteActionInsert || a == VoteActionUpdate
}
