package llm

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

const DefaultGatewayURL = "https://openrouter.ai/api/v1"

// GatewayConfig configures the OpenAI-compatible completions gateway.
type GatewayConfig struct {
	APIKey      string
	BaseURL     string
	Temperature float64
	Timeout     time.Duration
}

// Gateway reaches third-party models through an OpenAI-compatible
// chat completions endpoint such as OpenRouter.
type Gateway struct {
	client      openai.Client
	httpClient  *http.Client
	temperature float64
}

func NewGateway(cfg GatewayConfig) *Gateway {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultGatewayURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	httpClient := &http.Client{Timeout: cfg.Timeout}
	return &Gateway{
		client: openai.NewClient(
			option.WithAPIKey(cfg.APIKey),
			option.WithBaseURL(cfg.BaseURL),
			option.WithHTTPClient(httpClient),
			option.WithMaxRetries(0),
		),
		httpClient:  httpClient,
		temperature: cfg.Temperature,
	}
}

// Complete issues a single non-streaming chat completion. jsonMode sets
// response_format to json_object.
func (g *Gateway) Complete(ctx context.Context, model, system, user string, jsonMode bool) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
		Temperature: openai.Float(g.temperature),
	}
	if jsonMode {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}

	resp, err := g.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("gateway completion (%s): %w", model, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("gateway completion (%s): no choices", model)
	}
	return resp.Choices[0].Message.Content, nil
}

// Close releases idle connections.
func (g *Gateway) Close() {
	g.httpClient.CloseIdleConnections()
}
