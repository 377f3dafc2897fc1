package models

import "sort"

// Episode represents a single episode on one site
type Episode struct {
	Num  int    `json:"num"`
	Href string `json:"href,omitempty"`
	ID   string `json:"id,omitempty"`
}

// NormalizeEpisodes drops entries without a positive number or without any
// identity, collapses duplicate numbers to the first occurrence and sorts
// ascending.
func NormalizeEpisodes(eps []Episode) []Episode {
	seen := make(map[int]bool, len(eps))
	out := make([]Episode, 0, len(eps))
	for _, ep := range eps {
		if ep.Num <= 0 || (ep.Href == "" && ep.ID == "") {
			continue
		}
		if seen[ep.Num] {
			continue
		}
		seen[ep.Num] = true
		out = append(out, ep)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Num < out[j].Num
	})
	return out
}

// CandidateMethod is how a stream candidate was extracted
type CandidateMethod string

const (
	MethodDownload     CandidateMethod = "download"
	MethodVideoSource  CandidateMethod = "video-source"
	MethodSourcesBlock CandidateMethod = "sources-block"
	MethodLooseMatch   CandidateMethod = "loose-match"
)

// Priority returns the rank of the method, lower is better.
func (m CandidateMethod) Priority() int {
	switch m {
	case MethodDownload:
		return 0
	case MethodVideoSource:
		return 1
	case MethodSourcesBlock:
		return 2
	case MethodLooseMatch:
		return 3
	default:
		return 4
	}
}

// StreamCandidate is a URL found on a watch page that may be the media itself
type StreamCandidate struct {
	URL    string          `json:"url"`
	Method CandidateMethod `json:"method"`
}

// StreamMode tells the client how to play a resolved episode
type StreamMode string

const (
	ModeDirect      StreamMode = "direct"
	ModeEmbed       StreamMode = "embed"
	ModeUnavailable StreamMode = "unavailable"
)

// StreamResult is the outcome of stream resolution. Unavailable is a normal
// result, not an error.
type StreamResult struct {
	Available bool       `json:"available"`
	Site      SiteName   `json:"site"`
	DirectURL string     `json:"directUrl,omitempty"`
	ProxyURL  string     `json:"proxyUrl,omitempty"`
	EmbedURL  string     `json:"embedUrl,omitempty"`
	Mode      StreamMode `json:"mode"`
	Reason    string     `json:"reason,omitempty"`
}
