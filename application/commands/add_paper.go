package commands

import (
	"citegraph/domain/core/entities"
	"citegraph/pkg/utils"
)

// AddPaperCommand ingests a new paper
type AddPaperCommand struct {
	Title    string   `json:"title" validate:"required,max=500"`
	Authors  []string `json:"authors" validate:"required,min=1,max=100,dive,required,max=200"`
	Abstract string   `json:"abstract" validate:"max=20000"`
	Year     int      `json:"year" validate:"gte=0,lte=3000"`
	URL      string   `json:"url" validate:"omitempty,url"`
	Keywords []string `json:"keywords" validate:"max=50,dive,max=100"`
}

// Validate validates the command
func (c AddPaperCommand) Validate() error {
	return utils.ValidateStruct(c)
}

// Input returns the entity input for the command
func (c AddPaperCommand) Input() entities.PaperInput {
	return entities.PaperInput{
		Title:    c.Title,
		Authors:  c.Authors,
		Abstract: c.Abstract,
		Year:     c.Year,
		URL:      c.URL,
		Keywords: c.Keywords,
	}
}
