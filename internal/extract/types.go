// Package extract reconciles heterogeneous webhook payloads into a
// deduplicated list of candidate commerce URLs. It is a pure layer:
// the only network access is optional shortened-link expansion.
package extract

// Candidate is a URL surfaced from an event payload, tagged with a
// commerce-likelihood classification.
type Candidate struct {
	URL            string `json:"url"`
	LikelyCommerce bool   `json:"likely_commerce"`
	// Source names the extraction layer that produced the candidate
	// (field, text, expanded). Informational only.
	Source string `json:"source,omitempty"`
}

// Attachment is the shape-agnostic view of one platform attachment.
// Payload keys vary wildly between attachment types, so it stays a map.
type Attachment struct {
	Type    string
	Payload map[string]any
}

// Input carries everything the engine scans for one event: the free
// text of the message plus its attachments.
type Input struct {
	Text        string
	Attachments []Attachment
}
