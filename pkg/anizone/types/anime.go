// Package types provides public type definitions for the anizone library
package types

import (
	"strconv"

	"github.com/Pal-droid/anizone/internal/models"
)

// Anime is one search result
type Anime struct {
	// Name is the title as shown by the site
	Name string
	// URL is the site page of the title
	URL string
	// ImageURL is the cover image URL
	ImageURL string
	// IsDub is set for Italian dubbed releases
	IsDub bool
	// Source is the site the result came from
	Source string
}

// Episode represents a single episode of an anime
type Episode struct {
	// Number is the episode number as a string
	Number string
	Num    int
	// URL is the episode page, used to resolve the stream
	URL string
	ID  string
}

// Stream is a resolved playback target
type Stream struct {
	Available bool
	// URL is the media file or playlist
	URL string
	// Referer must be sent when fetching URL
	Referer string
	Reason  string
}

// FromSearchItems converts scraped result cards to public types
func FromSearchItems(items []models.SearchItem, site models.SiteName) []*Anime {
	result := make([]*Anime, len(items))
	for i, it := range items {
		result[i] = &Anime{
			Name:     it.Title,
			URL:      it.Href,
			ImageURL: it.Image,
			IsDub:    it.IsDub,
			Source:   string(site),
		}
	}
	return result
}

// FromEpisodes converts a normalized episode list to public types
func FromEpisodes(eps []models.Episode) []*Episode {
	result := make([]*Episode, len(eps))
	for i, ep := range eps {
		result[i] = &Episode{
			Number: strconv.Itoa(ep.Num),
			Num:    ep.Num,
			URL:    ep.Href,
			ID:     ep.ID,
		}
	}
	return result
}

// FromStreamResult converts a stream resolution outcome. Embed-only answers
// are reported as unavailable since they cannot be fetched directly.
func FromStreamResult(r models.StreamResult, referer string) *Stream {
	if r.Mode != models.ModeDirect {
		reason := r.Reason
		if r.Mode == models.ModeEmbed {
			reason = "embed only"
		}
		return &Stream{Reason: reason}
	}
	return &Stream{Available: true, URL: r.DirectURL, Referer: referer}
}
