package events

import (
	"time"

	"citegraph/domain/core/valueobjects"
)

// DomainEvent is the base interface for all domain events
// Events represent something that has happened in the past
type DomainEvent interface {
	GetAggregateID() string
	GetEventType() string
	GetTimestamp() time.Time
	GetVersion() int
}

// BaseEvent provides common event fields
type BaseEvent struct {
	AggregateID string    `json:"aggregate_id"`
	EventType   string    `json:"event_type"`
	Timestamp   time.Time `json:"timestamp"`
	Version     int       `json:"version"`
}

func (e BaseEvent) GetAggregateID() string  { return e.AggregateID }
func (e BaseEvent) GetEventType() string    { return e.EventType }
func (e BaseEvent) GetTimestamp() time.Time { return e.Timestamp }
func (e BaseEvent) GetVersion() int         { return e.Version }

const (
	TypePaperAdded    = "paper.added"
	TypeCitationAdded = "citation.added"
	TypeVoteCast      = "vote.cast"
	TypeVoteRetracted = "vote.retracted"
)

// Paper Events

// PaperAdded is raised when a paper is ingested
type PaperAdded struct {
	BaseEvent
	PaperID string `json:"paper_id"`
	Title   string `json:"title"`
	Year    int    `json:"year"`
}

// NewPaperAdded creates a PaperAdded event
func NewPaperAdded(paperID, title string, year int, timestamp time.Time) PaperAdded {
	return PaperAdded{
		BaseEvent: BaseEvent{
			AggregateID: paperID,
			EventType:   TypePaperAdded,
			Timestamp:   timestamp,
			Version:     1,
		},
		PaperID: paperID,
		Title:   title,
		Year:    year,
	}
}

// Citation Events

// CitationAdded is raised when a citation edge is stored
type CitationAdded struct {
	BaseEvent
	CitationID string `json:"citation_id"`
	CitingID   string `json:"citing_id"`
	CitedID    string `json:"cited_id"`
}

// NewCitationAdded creates a CitationAdded event
func NewCitationAdded(citationID, citingID, citedID string, timestamp time.Time) CitationAdded {
	return CitationAdded{
		BaseEvent: BaseEvent{
			AggregateID: citationID,
			EventType:   TypeCitationAdded,
			Timestamp:   timestamp,
			Version:     1,
		},
		CitationID: citationID,
		CitingID:   citingID,
		CitedID:    citedID,
	}
}

// Vote Events

// VoteChanged is raised when a user's stored vote is inserted, updated or removed.
// EventType is vote.cast for a non-zero value and vote.retracted otherwise.
type VoteChanged struct {
	BaseEvent
	UserID     string                  `json:"user_id"`
	TargetKind valueobjects.TargetKind `json:"target_kind"`
	TargetID   string                  `json:"target_id"`
	Value      int                     `json:"value"`
	Counts     valueobjects.Aggregate  `json:"counts"`
}

// NewVoteChanged creates a VoteChanged event
func NewVoteChanged(userID string, kind valueobjects.TargetKind, targetID string, value valueobjects.VoteValue, counts valueobjects.Aggregate, timestamp time.Time) VoteChanged {
	eventType := TypeVoteCast
	if value.IsNone() {
		eventType = TypeVoteRetracted
	}
	return VoteChanged{
		BaseEvent: BaseEvent{
			AggregateID: string(kind) + "#" + targetID,
			EventType:   eventType,
			Timestamp:   timestamp,
			Version:     1,
		},
		UserID:     userID,
		TargetKind: kind,
		TargetID:   targetID,
		Value:      value.Int(),
		Counts:     counts,
	}
}
