package models

import "github.com/google/uuid"

// PairItem is one author-defined pair: two contents that belong together,
// each side optionally backed by an uploaded image.
type PairItem struct {
	First       string  `json:"first"`
	Second      string  `json:"second"`
	FirstImage  *string `json:"first_image,omitempty"`
	SecondImage *string `json:"second_image,omitempty"`
}

// GameDefinition is the authored game content a play session is built from.
// It is immutable from the engine's point of view; the authoring subsystem
// owns creation and edits.
type GameDefinition struct {
	ID          uuid.UUID  `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	IsPublished bool       `json:"is_published"`
	Pairs       []PairItem `json:"pairs"`
}
