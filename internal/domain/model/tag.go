package model

const DefaultTagColor = "#6B7280"

// Tag is scoped to its owning user; names are stored lowercase.
type Tag struct {
	ID     string
	Name   string
	Color  string
	UserID string
}
