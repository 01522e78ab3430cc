package dynamodb

import (
	"fmt"
	"time"

	"citegraph/domain/core/entities"
	"citegraph/domain/core/valueobjects"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const (
	entityPaper    = "PAPER"
	entityCitation = "CITATION"
	entityPair     = "PAIR"
	entityVote     = "VOTE"

	metadataSK = "METADATA"

	tableWaitTimeout = 2 * time.Minute
)

func paperPK(id string) string    { return "PAPER#" + id }
func citationPK(id string) string { return "CITATION#" + id }
func citingKey(id string) string  { return "CITING#" + id }
func citedKey(id string) string   { return "CITED#" + id }
func userSK(id string) string     { return "USER#" + id }

func pairPK(citingID, citedID string) string {
	return fmt.Sprintf("PAIR#%s#%s", citingID, citedID)
}

func votePK(kind valueobjects.TargetKind, targetID string) string {
	return fmt.Sprintf("VOTE#%s#%s", kind, targetID)
}

// targetPK returns the partition key of the item a vote counts against
func targetPK(kind valueobjects.TargetKind, targetID string) string {
	if kind == valueobjects.TargetEdge {
		return citationPK(targetID)
	}
	return paperPK(targetID)
}

func key(pk, sk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: pk},
		"SK": &types.AttributeValueMemberS{Value: sk},
	}
}

// paperItem represents the DynamoDB item structure for a paper
type paperItem struct {
	PK         string   `dynamodbav:"PK"`
	SK         string   `dynamodbav:"SK"`
	EntityType string   `dynamodbav:"EntityType"`
	PaperID    string   `dynamodbav:"PaperID"`
	Title      string   `dynamodbav:"Title"`
	Authors    []string `dynamodbav:"Authors"`
	Abstract   string   `dynamodbav:"Abstract,omitempty"`
	Year       int      `dynamodbav:"Year"`
	URL        string   `dynamodbav:"URL,omitempty"`
	Keywords   []string `dynamodbav:"Keywords,omitempty"`
	CreatedAt  string   `dynamodbav:"CreatedAt"`
	Up         int      `dynamodbav:"Up"`
	Down       int      `dynamodbav:"Down"`
}

func newPaperItem(p *entities.Paper) paperItem {
	return paperItem{
		PK:         paperPK(p.ID),
		SK:         metadataSK,
		EntityType: entityPaper,
		PaperID:    p.ID,
		Title:      p.Title,
		Authors:    p.Authors,
		Abstract:   p.Abstract,
		Year:       p.Year,
		URL:        p.URL,
		Keywords:   p.Keywords,
		CreatedAt:  p.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func (i paperItem) toEntity() (*entities.Paper, error) {
	createdAt, err := time.Parse(time.RFC3339Nano, i.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("parse CreatedAt of paper %s: %w", i.PaperID, err)
	}
	return &entities.Paper{
		ID:        i.PaperID,
		Title:     i.Title,
		Authors:   i.Authors,
		Abstract:  i.Abstract,
		Year:      i.Year,
		URL:       i.URL,
		Keywords:  i.Keywords,
		CreatedAt: createdAt,
	}, nil
}

// citationItem represents the DynamoDB item structure for a citation
type citationItem struct {
	PK         string `dynamodbav:"PK"`
	SK         string `dynamodbav:"SK"`
	GSI1PK     string `dynamodbav:"GSI1PK"`
	GSI1SK     string `dynamodbav:"GSI1SK"`
	GSI2PK     string `dynamodbav:"GSI2PK"`
	GSI2SK     string `dynamodbav:"GSI2SK"`
	EntityType string `dynamodbav:"EntityType"`
	CitationID string `dynamodbav:"CitationID"`
	CitingID   string `dynamodbav:"CitingID"`
	CitedID    string `dynamodbav:"CitedID"`
	CreatedAt  string `dynamodbav:"CreatedAt"`
	Up         int    `dynamodbav:"Up"`
	Down       int    `dynamodbav:"Down"`
}

func newCitationItem(c *entities.Citation) citationItem {
	return citationItem{
		PK:         citationPK(c.ID),
		SK:         metadataSK,
		GSI1PK:     citingKey(c.CitingID),
		GSI1SK:     citedKey(c.CitedID),
		GSI2PK:     citedKey(c.CitedID),
		GSI2SK:     citingKey(c.CitingID),
		EntityType: entityCitation,
		CitationID: c.ID,
		CitingID:   c.CitingID,
		CitedID:    c.CitedID,
		CreatedAt:  c.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func (i citationItem) toEntity() (*entities.Citation, error) {
	createdAt, err := time.Parse(time.RFC3339Nano, i.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("parse CreatedAt of citation %s: %w", i.CitationID, err)
	}
	return &entities.Citation{
		ID:        i.CitationID,
		CitingID:  i.CitingID,
		CitedID:   i.CitedID,
		CreatedAt: createdAt,
	}, nil
}

// pairItem guards the uniqueness of an ordered citation pair
type pairItem struct {
	PK         string `dynamodbav:"PK"`
	SK         string `dynamodbav:"SK"`
	EntityType string `dynamodbav:"EntityType"`
	CitationID string `dynamodbav:"CitationID"`
}

// voteItem represents one stored vote
type voteItem struct {
	PK         string `dynamodbav:"PK"`
	SK         string `dynamodbav:"SK"`
	EntityType string `dynamodbav:"EntityType"`
	VoteID     string `dynamodbav:"VoteID"`
	UserID     string `dynamodbav:"UserID"`
	TargetKind string `dynamodbav:"TargetKind"`
	TargetID   string `dynamodbav:"TargetID"`
	Value      int    `dynamodbav:"Value"`
	UpdatedAt  string `dynamodbav:"UpdatedAt"`
}

// counterItem is the projection read by tallies
type counterItem struct {
	PK   string `dynamodbav:"PK"`
	Up   int    `dynamodbav:"Up"`
	Down int    `dynamodbav:"Down"`
}

// counterDelta returns the Up and Down increments that move a tally from
// counting `from` to counting `to`
func counterDelta(from, to valueobjects.VoteValue) (up, down int) {
	switch from {
	case valueobjects.VoteUp:
		up--
	case valueobjects.VoteDown:
		down--
	}
	switch to {
	case valueobjects.VoteUp:
		up++
	case valueobjects.VoteDown:
		down++
	}
	return up, down
}
