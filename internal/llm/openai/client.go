package openai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rory-hayes/payslip-buddy-ai/internal/llm"
)

const systemPrompt = "You extract structured payslip data from redacted preview images " +
	"of UK and Irish payslips. Return ONLY JSON matching the provided schema. " +
	"Amounts are plain numbers in the payslip currency. Dates are YYYY-MM-DD. " +
	"Use null for values you cannot read."

// ExtractPayslip implements llm.VisionExtractor over chat/completions with
// image parts. Every payload is validated against the extraction schema
// before it is returned; an invalid payload is an error, never a partial
// result.
func (c *Client) ExtractPayslip(ctx context.Context, req llm.ExtractRequest) (*llm.Extraction, llm.Usage, error) {
	rid := uuid.New().String()
	start := time.Now()

	c.logger.Info("llm.extract.start",
		"req_id", rid,
		"model", c.cfg.Model,
		"temp", c.cfg.Temperature,
		"images", len(req.Images),
		"user_id", req.UserID,
	)

	content := []map[string]any{
		{"type": "text", "text": "Extract payslip key values as per schema."},
	}
	for _, img := range req.Images {
		content = append(content, map[string]any{
			"type": "image_url",
			"image_url": map[string]any{
				"url": "data:image/png;base64," + base64.StdEncoding.EncodeToString(img),
			},
		})
	}

	schema := llm.BuildPayslipJSONSchema()
	body := map[string]any{
		"model":           c.cfg.Model,
		"temperature":     c.cfg.Temperature,
		"response_format": map[string]any{"type": "json_object"},
		"messages": []map[string]any{
			{"role": "system", "content": systemPrompt + "\n\nJSON Schema:\n" + mustJSON(schema)},
			{"role": "user", "content": content},
		},
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	headers := map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}
	raw, err := llm.PostJSON(ctx, c.http, endpoint, body, headers, c.logger)
	if err != nil {
		c.logger.Error("llm.extract.http_error",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, llm.Usage{}, err
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Usage struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
			TotalTokens      int `json:"total_tokens"`
		} `json:"usage"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		c.logger.Error("llm.extract.decode_error",
			"req_id", rid, "error", err, "raw_bytes", len(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, llm.Usage{}, fmt.Errorf("decode openai response: %w", err)
	}
	if len(cc.Choices) == 0 {
		c.logger.Error("llm.extract.no_choices",
			"req_id", rid, "raw", string(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, llm.Usage{}, fmt.Errorf("no choices in openai response")
	}

	payload, err := llm.DecodePayload([]byte(cc.Choices[0].Message.Content))
	if err != nil {
		c.logger.Error("llm.extract.schema_validation_failed",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, llm.Usage{}, err
	}

	usage := llm.Usage{
		TokensInput:  cc.Usage.PromptTokens,
		TokensOutput: cc.Usage.CompletionTokens,
		CostUSD:      costUSD(cc.Usage.TotalTokens),
	}
	c.logger.Info("llm.extract.ok",
		"req_id", rid,
		"country", payload.Country,
		"currency", payload.Currency,
		"confidence", payload.ConfidenceOverall,
		"tokens", cc.Usage.TotalTokens,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return payload, usage, nil
}

// costUSD estimates inference cost from total tokens at a blended rate.
func costUSD(totalTokens int) float64 {
	return float64(totalTokens) * 0.00015
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}
