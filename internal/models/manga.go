package models

// MangaMetadata is the info block of a manga title page
type MangaMetadata struct {
	Title     string   `json:"title"`
	AltTitles []string `json:"altTitles,omitempty"`
	Image     string   `json:"image,omitempty"`
	Type      string   `json:"type,omitempty"`
	Status    string   `json:"status,omitempty"`
	Author    string   `json:"author,omitempty"`
	Artist    string   `json:"artist,omitempty"`
	Year      string   `json:"year,omitempty"`
	Genres    []string `json:"genres,omitempty"`
	Synopsis  string   `json:"synopsis,omitempty"`
	Volumes   []Volume `json:"volumes"`
}

// Volume groups chapters. Chapter order follows the page (newest first).
type Volume struct {
	Name     string    `json:"name"`
	Image    string    `json:"image,omitempty"`
	Chapters []Chapter `json:"chapters"`
}

// Chapter is a single readable chapter
type Chapter struct {
	Title string `json:"title"`
	URL   string `json:"url"`
	Date  string `json:"date,omitempty"`
	IsNew bool   `json:"isNew,omitempty"`
}

// ChapterCount returns the number of chapters across all volumes.
func (m MangaMetadata) ChapterCount() int {
	n := 0
	for _, v := range m.Volumes {
		n += len(v.Chapters)
	}
	return n
}
