package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"agora/internal/logging"
	"agora/internal/types"
)

// GeminiClient implements Client against the Gemini REST API.
type GeminiClient struct {
	apiKey     string
	baseURL    string
	pool       *Pool
	httpClient *http.Client

	mu          sync.Mutex
	lastRequest time.Time
}

// GeminiConfig holds configuration for the Gemini client.
type GeminiConfig struct {
	APIKey    string
	BaseURL   string
	ModelPool []string
	Timeout   time.Duration
	Seed      int64
}

// NewGeminiClient creates a Gemini chat client. The API key is mandatory:
// a missing key fails here, at the interface boundary, not mid-session.
func NewGeminiClient(cfg GeminiConfig) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, types.NewError(types.KindTransport, "GEMINI_API_KEY not configured", nil)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}
	if len(cfg.ModelPool) == 0 {
		return nil, types.NewError(types.KindTransport, "empty model pool", nil)
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}

	return &GeminiClient{
		apiKey:  cfg.APIKey,
		baseURL: cfg.BaseURL,
		pool:    NewPool(cfg.ModelPool, cfg.Seed),
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}, nil
}

// =============================================================================
// GEMINI API TYPES
// =============================================================================

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

type geminiRequest struct {
	Contents          []geminiContent         `json:"contents"`
	SystemInstruction *geminiContent          `json:"systemInstruction,omitempty"`
	GenerationConfig  *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error,omitempty"`
}

// =============================================================================
// CLIENT IMPLEMENTATION
// =============================================================================

// Chat sends messages to the named model. The model must be in the pool.
func (c *GeminiClient) Chat(ctx context.Context, model string, messages []Message) (*ChatResponse, error) {
	if err := validateModel(c.pool, model); err != nil {
		return nil, err
	}

	// Rate limiting: at least 600ms between requests.
	c.mu.Lock()
	elapsed := time.Since(c.lastRequest)
	if elapsed < 600*time.Millisecond {
		time.Sleep(600*time.Millisecond - elapsed)
	}
	c.lastRequest = time.Now()
	c.mu.Unlock()

	req := geminiRequest{
		GenerationConfig: &geminiGenerationConfig{
			Temperature: 0.7,
		},
	}
	for _, m := range messages {
		if m.Role == "system" {
			req.SystemInstruction = &geminiContent{
				Parts: []geminiPart{{Text: m.Content}},
			}
			continue
		}
		req.Contents = append(req.Contents, geminiContent{
			Role:  "user",
			Parts: []geminiPart{{Text: m.Content}},
		})
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, types.NewError(types.KindTransport, "failed to marshal request", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, model, c.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return nil, types.NewError(types.KindTransport, "failed to create request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, types.NewError(types.KindTimeout, "chat call cancelled", ctx.Err())
		}
		return nil, types.NewError(types.KindTransport, "gemini request failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, types.NewError(types.KindTransport, "failed to read response", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, types.NewError(types.KindTransport,
			fmt.Sprintf("gemini returned status %d: %s", resp.StatusCode, truncate(string(raw), 512)), nil)
	}

	var parsed geminiResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, types.NewError(types.KindTransport, "failed to decode response", err)
	}
	if parsed.Error != nil {
		return nil, types.NewError(types.KindTransport,
			fmt.Sprintf("gemini error %d (%s): %s", parsed.Error.Code, parsed.Error.Status, parsed.Error.Message), nil)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return nil, types.NewError(types.KindTransport, "gemini returned no candidates", nil)
	}

	var content string
	for _, p := range parsed.Candidates[0].Content.Parts {
		content += p.Text
	}

	usage := Usage{
		InputTokens:  parsed.UsageMetadata.PromptTokenCount,
		OutputTokens: parsed.UsageMetadata.CandidatesTokenCount,
	}

	logging.API("model=%s in_tokens=%d out_tokens=%d latency=%v",
		model, usage.InputTokens, usage.OutputTokens, time.Since(start))

	return &ChatResponse{
		Content: content,
		Model:   model,
		Usage:   usage,
		CostUSD: EstimateCost(model, usage),
	}, nil
}

// ChatRandom samples a model uniformly from the pool and calls Chat.
func (c *GeminiClient) ChatRandom(ctx context.Context, messages []Message) (*ChatResponse, error) {
	return c.Chat(ctx, c.pool.Sample(), messages)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
