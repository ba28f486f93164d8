// Package gemini provides the Gemini-backed vision extractor.
package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/google/uuid"
	"google.golang.org/api/option"

	"github.com/rory-hayes/payslip-buddy-ai/internal/llm"
)

type Config struct {
	APIKey      string
	Model       string // default "gemini-2.0-flash"
	Temperature float32
}

type Client struct {
	cfg    Config
	genai  *genai.Client
	logger *slog.Logger
}

func NewClient(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}
	if logger == nil {
		logger = slog.Default()
	}
	gc, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("init gemini client: %w", err)
	}
	return &Client{cfg: cfg, genai: gc, logger: logger}, nil
}

func (c *Client) Close() error { return c.genai.Close() }

// ExtractPayslip implements llm.VisionExtractor by sending the preview images
// as binary Blob parts with the schema embedded in the prompt.
func (c *Client) ExtractPayslip(ctx context.Context, req llm.ExtractRequest) (*llm.Extraction, llm.Usage, error) {
	rid := uuid.New().String()
	start := time.Now()

	c.logger.Info("llm.extract.start",
		"req_id", rid,
		"model", c.cfg.Model,
		"images", len(req.Images),
		"user_id", req.UserID,
	)

	model := c.genai.GenerativeModel(c.cfg.Model)
	model.SetTemperature(c.cfg.Temperature)

	prompt := []genai.Part{
		genai.Text("Extract payslip key values from the attached redacted payslip images. " +
			"Return ONLY JSON matching this schema, no markdown:\n" + schemaJSON()),
	}
	for _, img := range req.Images {
		prompt = append(prompt, genai.Blob{MIMEType: "image/png", Data: img})
	}

	resp, err := model.GenerateContent(ctx, prompt...)
	if err != nil {
		c.logger.Error("llm.extract.api_error", "req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return nil, llm.Usage{}, fmt.Errorf("gemini generate: %w", err)
	}
	text, err := candidateText(resp)
	if err != nil {
		return nil, llm.Usage{}, err
	}

	payload, err := llm.DecodePayload([]byte(text))
	if err != nil {
		c.logger.Error("llm.extract.schema_validation_failed", "req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return nil, llm.Usage{}, err
	}

	// The genai API does not report token usage on this endpoint; meter a
	// flat per-call estimate so the spend cap still accrues.
	usage := llm.Usage{CostUSD: 0.01}
	c.logger.Info("llm.extract.ok",
		"req_id", rid,
		"country", payload.Country,
		"confidence", payload.ConfidenceOverall,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return payload, usage, nil
}

// candidateText pulls the first text part out of a response. Content is nil
// on safety-blocked candidates, so every level is checked before use.
func candidateText(resp *genai.GenerateContentResponse) (genai.Text, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("empty gemini response")
	}
	content := resp.Candidates[0].Content
	if content == nil || len(content.Parts) == 0 {
		return "", fmt.Errorf("empty gemini response")
	}
	text, ok := content.Parts[0].(genai.Text)
	if !ok {
		return "", fmt.Errorf("unexpected gemini response part type")
	}
	return text, nil
}

func schemaJSON() string {
	b, err := json.Marshal(llm.BuildPayslipJSONSchema())
	if err != nil {
		return "{}"
	}
	return string(b)
}
