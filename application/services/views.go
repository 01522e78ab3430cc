package services

import (
	"citegraph/domain/core/entities"
	"citegraph/domain/core/valueobjects"
	"citegraph/pkg/utils"
)

// PaperView is a paper annotated for presentation
type PaperView struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Authors   []string `json:"authors"`
	Abstract  string   `json:"abstract,omitempty"`
	Year      int      `json:"year"`
	URL       string   `json:"url,omitempty"`
	Keywords  []string `json:"keywords"`
	CreatedAt string   `json:"createdAt"`

	Up       int  `json:"up"`
	Down     int  `json:"down"`
	Score    int  `json:"score"`
	Hidden   bool `json:"hidden"`
	UserVote *int `json:"userVote,omitempty"`
	Depth    *int `json:"depth,omitempty"`
}

// EdgeView is a citation annotated for presentation
type EdgeView struct {
	ID        string `json:"id"`
	CitingID  string `json:"citingId"`
	CitedID   string `json:"citedId"`
	CreatedAt string `json:"createdAt"`

	Up       int  `json:"up"`
	Down     int  `json:"down"`
	Score    int  `json:"score"`
	Hidden   bool `json:"hidden"`
	UserVote *int `json:"userVote,omitempty"`
}

// GraphSnapshot is the canonical result of one expansion
type GraphSnapshot struct {
	SeedID    string      `json:"seedId"`
	Depth     int         `json:"depth"`
	Direction string      `json:"direction"`
	Nodes     []PaperView `json:"nodes"`
	Edges     []EdgeView  `json:"edges"`
}

// RelatedPapers lists the direct neighbours of one paper
type RelatedPapers struct {
	PaperID string      `json:"paperId"`
	Cites   []PaperView `json:"cites"`
	CitedBy []PaperView `json:"citedBy"`
}

// VoteResult reports a user's vote and the target's tally after a vote command
type VoteResult struct {
	TargetKind string                 `json:"targetKind"`
	TargetID   string                 `json:"targetId"`
	UserVote   int                    `json:"userVote"`
	Counts     valueobjects.Aggregate `json:"counts"`
}

func newPaperView(p *entities.Paper, agg valueobjects.Aggregate, hidden bool) PaperView {
	return PaperView{
		ID:        p.ID,
		Title:     p.Title,
		Authors:   append([]string{}, p.Authors...),
		Abstract:  p.Abstract,
		Year:      p.Year,
		URL:       p.URL,
		Keywords:  append([]string{}, p.Keywords...),
		CreatedAt: utils.FormatTimestamp(p.CreatedAt),
		Up:        agg.Up,
		Down:      agg.Down,
		Score:     agg.Score,
		Hidden:    hidden,
	}
}

func newEdgeView(c *entities.Citation, agg valueobjects.Aggregate, hidden bool) EdgeView {
	return EdgeView{
		ID:        c.ID,
		CitingID:  c.CitingID,
		CitedID:   c.CitedID,
		CreatedAt: utils.FormatTimestamp(c.CreatedAt),
		Up:        agg.Up,
		Down:      agg.Down,
		Score:     agg.Score,
		Hidden:    hidden,
	}
}

func userVotePtr(votes map[string]valueobjects.VoteValue, id string) *int {
	v := votes[id].Int()
	return &v
}
