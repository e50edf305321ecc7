package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/dirdex/internal/domain"
	"github.com/kailas-cloud/dirdex/internal/domain/search/query"
)

const parserSystemPrompt = `You extract search filters from a directory search query about people and projects.
Reply with a single JSON object and nothing else:
{
  "companies": [string], "locations": [string], "skills": [string], "interests": [string],
  "availability": {"hire": bool|null, "collab": bool|null, "hiring": bool|null},
  "strict_filters": {"locations": [string], "skills": [string], "companies": [string],
                     "availability": {"hire": bool|null, "collab": bool|null, "hiring": bool|null}},
  "intent": "find_people" | "find_projects" | "find_companies" | "general",
  "freeform_query": string,
  "confidence": number between 0 and 1
}
hire means open to being hired, collab means open to collaborate, hiring means the person is hiring.
Put an entity in strict_filters only when the user requires it ("only", "must be", "exclusively").
freeform_query keeps the descriptive part of the query that is not a structured entity.`

// ParserConfig holds the LLM query parser settings.
type ParserConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxAttempts int
	Logger      *zap.Logger
}

// Parser extracts a structured query with chat completions in JSON mode.
type Parser struct {
	client      *openai.Client
	model       string
	maxAttempts int
	logger      *zap.Logger
}

// NewParser creates a chat-completion backed query parser.
func NewParser(cfg *ParserConfig) *Parser {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = 3
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Parser{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		maxAttempts: attempts,
		logger:      logger,
	}
}

var errMalformed = errors.New("malformed parser output")

// Generate asks the model for a structured parse of raw. Malformed JSON is
// retried; API errors are returned immediately.
func (p *Parser) Generate(ctx context.Context, raw string) (query.Parsed, error) {
	req := openai.ChatCompletionRequest{
		Model:       p.model,
		Temperature: 0,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: parserSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: raw},
		},
	}

	var lastErr error
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		resp, err := p.client.CreateChatCompletion(ctx, req)
		if err != nil {
			return query.Parsed{}, wrapAPIError("parser", err, domain.ErrQueryParserError)
		}
		if len(resp.Choices) == 0 {
			lastErr = fmt.Errorf("no choices: %w", errMalformed)
			continue
		}

		parsed, err := decodeParsed(resp.Choices[0].Message.Content)
		if err != nil {
			lastErr = err
			p.logger.Debug("parser returned malformed output",
				zap.Int("attempt", attempt), zap.Error(err))
			continue
		}
		parsed.OriginalQuery = raw
		return parsed, nil
	}
	return query.Parsed{}, fmt.Errorf("after %d attempts: %w: %w", p.maxAttempts, lastErr, domain.ErrQueryParserError)
}

func decodeParsed(content string) (query.Parsed, error) {
	body := stripCodeFence(content)
	if body == "" {
		return query.Parsed{}, fmt.Errorf("empty content: %w", errMalformed)
	}
	var parsed query.Parsed
	if err := json.Unmarshal([]byte(body), &parsed); err != nil {
		return query.Parsed{}, fmt.Errorf("%w: %w", errMalformed, err)
	}
	return parsed, nil
}

// stripCodeFence removes a surrounding ``` or ```json fence.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
