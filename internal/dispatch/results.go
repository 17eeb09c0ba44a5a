package dispatch

import (
	"fmt"
	"strings"

	"github.com/shopscout/shopscout/internal/pipeline"
)

const defaultURLsPerMessage = 10

const (
	ackAnalyzing  = "🔍 Analyzing your product... I'll send you the purchase links shortly!"
	ackProcessing = "👋 Received your message. Processing..."

	guidanceText = "Send me a product photo, a reel, or a shop link and I'll find purchase links for you!"

	noResultsText = "Sorry, I couldn't find purchase links for this product. Try sending another product!"

	genericFailureText = "Sorry, something went wrong while looking up your product. Please try again!"

	rateLimitedText = "Our search service is busy right now. Please wait a minute and send your product again!"
)

// ackText picks the acknowledgment variant: the analyzing form when
// the event carried a media attachment, the plain form otherwise.
func ackText(hasWork bool) string {
	if hasWork {
		return ackAnalyzing
	}
	return ackProcessing
}

// failureText picks the user-facing failure message for a finished but
// unsuccessful run. Rate-limited runs get a distinct message so the
// user knows retrying later may work.
func failureText(state *pipeline.RunState) string {
	if state.RateLimited {
		return rateLimitedText
	}
	if !state.HasStageError() && len(state.ProductURLs) == 0 {
		return noResultsText
	}
	return genericFailureText
}

// resultHeader builds the first line of a success delivery, naming the
// product when extraction identified one.
func resultHeader(product *pipeline.ProductInfo) string {
	name := ""
	if product != nil && len(product.Products) > 0 {
		first := product.Products[0]
		switch {
		case first.Brand != "" && first.Name != "":
			name = fmt.Sprintf(" for %s %s", first.Brand, first.Name)
		case first.Brand != "":
			name = fmt.Sprintf(" for %s", first.Brand)
		case first.Name != "":
			name = fmt.Sprintf(" for %s", first.Name)
		}
	}
	return fmt.Sprintf("Here are purchase links%s:", name)
}

// chunkResults splits a URL list into sequential message bodies, at
// most perMessage URLs each. The first message carries the header;
// later ones are labeled as continuation parts.
func chunkResults(header string, urls []string, perMessage int) []string {
	if perMessage <= 0 {
		perMessage = defaultURLsPerMessage
	}

	var messages []string
	for i := 0; i < len(urls); i += perMessage {
		end := i + perMessage
		if end > len(urls) {
			end = len(urls)
		}

		var b strings.Builder
		if i == 0 {
			b.WriteString(header)
		} else {
			part := i/perMessage + 1
			b.WriteString(fmt.Sprintf("More links (Part %d):", part))
		}
		b.WriteString("\n\n")
		for _, u := range urls[i:end] {
			b.WriteString(u)
			b.WriteString("\n\n")
		}
		messages = append(messages, strings.TrimSpace(b.String()))
	}
	return messages
}
