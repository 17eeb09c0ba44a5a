package extract

import (
	"context"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

// Payload field names that directly signal a purchase link. A URL
// found under one of these keys is classified as commerce regardless
// of its path shape.
var commerceFieldNames = map[string]bool{
	"product_url":  true,
	"shop_url":     true,
	"shopping_url": true,
	"merchant_url": true,
	"buy_url":      true,
}

// Payload field names scanned for free-text URLs alongside the
// message body.
var textFieldNames = []string{"title", "caption", "description", "text", "body"}

var (
	absoluteURLPattern = regexp.MustCompile(`https?://[^\s<>"{}|\\^` + "`" + `\[\]]+`)
	bareURLPattern     = regexp.MustCompile(`(?i)\bwww\.[^\s<>"{}|\\^` + "`" + `\[\]]+`)
)

// Engine runs the layered URL extraction over one event's payload.
type Engine struct {
	expander *Expander
	logger   *zap.Logger
}

// NewEngine builds an Engine. The expander may be nil, in which case
// shortened links are kept unexpanded.
func NewEngine(expander *Expander, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{expander: expander, logger: logger}
}

// Extract scans the input through every layer, unions the results,
// expands shortened links, classifies, and deduplicates. A zero-
// candidate result is a normal outcome, never an error.
func (e *Engine) Extract(ctx context.Context, in Input) []Candidate {
	var raw []Candidate

	// Layer 1: any payload field whose key mentions a URL and whose
	// value is an absolute URL string.
	for _, att := range in.Attachments {
		for key, value := range att.Payload {
			s, ok := value.(string)
			if !ok || !strings.HasPrefix(s, "http") {
				continue
			}
			lowerKey := strings.ToLower(key)
			if !strings.Contains(lowerKey, "url") && !strings.Contains(lowerKey, "link") {
				continue
			}
			raw = append(raw, Candidate{
				URL:            s,
				LikelyCommerce: commerceFieldNames[lowerKey],
				Source:         "field",
			})
		}
	}

	// Layer 2: free-text scan over the message body and the textual
	// payload fields.
	texts := []string{in.Text}
	for _, att := range in.Attachments {
		for _, name := range textFieldNames {
			if s, ok := att.Payload[name].(string); ok {
				texts = append(texts, s)
			}
		}
	}
	for _, text := range texts {
		for _, u := range scanText(text) {
			raw = append(raw, Candidate{URL: u, Source: "text"})
		}
	}

	// Layer 3: shortened-link expansion, best-effort.
	if e.expander != nil {
		for i, c := range raw {
			sig := SignatureOf(c.URL)
			if !isShortener(sig.Host) {
				continue
			}
			expanded := e.expander.Expand(ctx, c.URL)
			if expanded != c.URL {
				e.logger.Debug("expanded shortened url",
					zap.String("from", c.URL),
					zap.String("to", expanded),
				)
				raw[i].URL = expanded
				raw[i].Source = "expanded"
			}
		}
	}

	// Layers 4 and 5: classification, then one entry per dedup
	// signature with first-seen winning.
	seen := make(map[Signature]int, len(raw))
	out := make([]Candidate, 0, len(raw))
	for _, c := range raw {
		if !c.LikelyCommerce {
			c.LikelyCommerce = likelyCommerce(c.URL)
		}
		sig := SignatureOf(c.URL)
		if idx, dup := seen[sig]; dup {
			// A later layer may know more than an earlier one.
			if c.LikelyCommerce {
				out[idx].LikelyCommerce = true
			}
			continue
		}
		seen[sig] = len(out)
		out = append(out, c)
	}

	return out
}

// Sentence punctuation that regularly trails a pasted link.
const trailingPunct = ".,;:!?)"

// scanText pulls URL-shaped tokens out of free text. Bare www forms
// get an https scheme injected, and trailing sentence punctuation is
// stripped so "see https://x/p/1, thanks" does not taint the URL.
func scanText(text string) []string {
	if text == "" {
		return nil
	}

	var urls []string
	for _, m := range absoluteURLPattern.FindAllString(text, -1) {
		urls = append(urls, strings.TrimRight(m, trailingPunct))
	}

	for _, m := range bareURLPattern.FindAllString(text, -1) {
		urls = append(urls, "https://"+strings.TrimRight(m, trailingPunct))
	}

	// Scheme-less shortener tokens (bit.ly/x, linktr.ee/x) also count.
	for _, s := range shortenerDomains {
		pattern := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(s) + `/[^\s<>"']+`)
		for _, m := range pattern.FindAllString(text, -1) {
			m = strings.TrimRight(m, trailingPunct)
			if !containsURL(urls, m) {
				urls = append(urls, "https://"+m)
			}
		}
	}

	return urls
}

func containsURL(urls []string, bare string) bool {
	for _, u := range urls {
		if strings.HasSuffix(u, bare) {
			return true
		}
	}
	return false
}
