package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel"

	"github.com/pitchside/video-pipeline/internal/classifier"
	"github.com/pitchside/video-pipeline/pkg/models"
)

var tracer = otel.Tracer("pitchside-analysis")

// Request is the payload sent to the AI analysis service. The response
// shape depends on VideoType.
type Request struct {
	VideoURL      string                `json:"video_url"`
	VideoType     models.VideoType      `json:"video_type"`
	Sport         classifier.Sport      `json:"sport"`
	Duration      float64               `json:"duration_seconds,omitempty"`
	TaggedPlayers []models.TaggedPlayer `json:"tagged_players,omitempty"`
	Match         *models.MatchInfo     `json:"match,omitempty"`
}

// Client calls the external AI analysis service over HTTP. Inference
// latency is unbounded; the only deadline applied is the caller's
// context.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	log        *slog.Logger
}

// NewClient creates an analysis client for the given endpoint.
func NewClient(baseURL, apiKey string, log *slog.Logger) *Client {
	return &Client{
		// No client-side timeout: remote inference can legitimately
		// run for a very long time. Cancellation comes from ctx.
		httpClient: &http.Client{},
		baseURL:    baseURL,
		apiKey:     apiKey,
		log:        log,
	}
}

// Analyze submits the video for analysis and returns the raw,
// type-shaped response body for the normalizer.
func (c *Client) Analyze(ctx context.Context, req *Request) (json.RawMessage, error) {
	ctx, span := tracer.Start(ctx, "ai-analyze")
	defer span.End()

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal analysis request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/analyze", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build analysis request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	c.log.InfoContext(ctx, "Submitting video for analysis",
		"videoUrl", req.VideoURL,
		"videoType", req.VideoType,
		"sport", req.Sport,
	)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("analysis request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read analysis response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("analysis service returned %d: %s", resp.StatusCode, truncate(string(raw), 200))
	}

	return raw, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
