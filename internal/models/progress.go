package models

import "time"

// ContinueEntry records where the user stopped in a series. Anime entries
// use Episode and PositionSeconds, manga entries use Chapter and Page.
type ContinueEntry struct {
	SeriesKey       string    `json:"seriesKey"`
	Title           string    `json:"title,omitempty"`
	Episode         int       `json:"episode,omitempty"`
	Chapter         string    `json:"chapter,omitempty"`
	PositionSeconds float64   `json:"positionSeconds,omitempty"`
	Page            int       `json:"page,omitempty"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// ListEntry is one title saved in a named user list
type ListEntry struct {
	SeriesKey string    `json:"seriesKey"`
	Title     string    `json:"title"`
	Image     string    `json:"image,omitempty"`
	Sources   []Source  `json:"sources,omitempty"`
	AddedAt   time.Time `json:"addedAt"`
}

// UserLists maps a list name (watching, completed, ...) to its entries
type UserLists map[string][]ListEntry
