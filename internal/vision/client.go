// Package vision calls the vision-language extraction service that
// turns run media into structured product information.
package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/shopscout/shopscout/internal/pipeline"
)

// Client implements pipeline.Extractor against an HTTP extraction
// service.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *zap.Logger
}

// NewClient builds a vision extraction client.
func NewClient(baseURL, apiKey string, timeout time.Duration, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

type extractRequest struct {
	MediaBase64  string   `json:"media_base64,omitempty"`
	FramesBase64 []string `json:"frames_base64,omitempty"`
	MediaKind    string   `json:"media_kind"`
	ContentType  string   `json:"content_type"`
}

type extractResponse struct {
	Products      []responseProduct `json:"products"`
	SearchQueries []string          `json:"search_queries"`
	RawText       string            `json:"raw_text"`
}

type responseProduct struct {
	Brand   string `json:"brand"`
	Product string `json:"product"`
	Variant string `json:"variant"`
	Price   string `json:"price"`
}

// Extract uploads the acquired media and returns the parsed product
// information. When the service returns text that does not parse as
// the structured shape, the raw text is kept and ParseFailed is set
// instead of failing the stage.
func (c *Client) Extract(ctx context.Context, media *pipeline.AcquiredMedia) (*pipeline.ProductInfo, error) {
	payload, err := buildRequest(media)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, pipeline.Permanent(fmt.Errorf("encode extract request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/extract", bytes.NewReader(body))
	if err != nil {
		return nil, pipeline.Permanent(fmt.Errorf("build extract request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, pipeline.Transient(fmt.Errorf("call extraction service: %w", err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, pipeline.Transient(fmt.Errorf("read extraction response: %w", err))
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, pipeline.RateLimited(fmt.Errorf("extraction service rate limited"))
	case resp.StatusCode >= 500:
		return nil, pipeline.Transient(fmt.Errorf("extraction service status %d", resp.StatusCode))
	case resp.StatusCode >= 400:
		return nil, pipeline.Permanent(fmt.Errorf("extraction service status %d: %s", resp.StatusCode, truncate(raw, 256)))
	}

	var parsed extractResponse
	if err := json.Unmarshal(raw, &parsed); err != nil || (len(parsed.Products) == 0 && len(parsed.SearchQueries) == 0 && parsed.RawText == "") {
		// Keep whatever the model said so finalize can persist it.
		c.logger.Warn("extraction response not structured", zap.Error(err))
		return &pipeline.ProductInfo{
			RawText:     string(raw),
			ParseFailed: true,
		}, nil
	}

	info := &pipeline.ProductInfo{
		SearchQueries: parsed.SearchQueries,
		RawText:       parsed.RawText,
	}
	for _, p := range parsed.Products {
		info.Products = append(info.Products, pipeline.Product{
			Brand:   p.Brand,
			Name:    p.Product,
			Variant: p.Variant,
			Price:   p.Price,
		})
	}

	if len(info.SearchQueries) == 0 {
		info.SearchQueries = fallbackQueries(info.Products)
	}

	return info, nil
}

// buildRequest assembles the upload: derived still frames when the
// acquire stage produced them, the raw media file otherwise. The
// service always sees still-image inputs for framed videos.
func buildRequest(media *pipeline.AcquiredMedia) (extractRequest, error) {
	req := extractRequest{
		MediaKind:   string(media.Kind),
		ContentType: media.ContentType,
	}

	if len(media.Frames) > 0 {
		for _, framePath := range media.Frames {
			data, err := os.ReadFile(framePath)
			if err != nil {
				return req, pipeline.Permanent(fmt.Errorf("read derived frame: %w", err))
			}
			req.FramesBase64 = append(req.FramesBase64, base64.StdEncoding.EncodeToString(data))
		}
		req.ContentType = "image/jpeg"
		return req, nil
	}

	data, err := os.ReadFile(media.Path)
	if err != nil {
		return req, pipeline.Permanent(fmt.Errorf("read media file: %w", err))
	}
	req.MediaBase64 = base64.StdEncoding.EncodeToString(data)
	return req, nil
}

// fallbackQueries derives search strings from brand/product pairs when
// the service did not supply ready-made queries.
func fallbackQueries(products []pipeline.Product) []string {
	var queries []string
	for _, p := range products {
		q := strings.TrimSpace(p.Brand + " " + p.Name)
		if q == "" {
			continue
		}
		if p.Variant != "" {
			q += " " + p.Variant
		}
		queries = append(queries, q)
	}
	return queries
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
