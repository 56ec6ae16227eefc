package yandex

import (
	"context"
	"encoding/json"
	"fmt"
)

// Message is one chat turn in the Foundation Models format.
type Message struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

type completionOptions struct {
	Stream      bool    `json:"stream"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"maxTokens,string"`
}

type completionRequest struct {
	ModelURI          string            `json:"modelUri"`
	CompletionOptions completionOptions `json:"completionOptions"`
	Messages          []Message         `json:"messages"`
	JSONObject        bool              `json:"jsonObject,omitempty"`
}

type completionResponse struct {
	Result struct {
		Alternatives []struct {
			Message struct {
				Role string `json:"role"`
				Text string `json:"text"`
			} `json:"message"`
			Status string `json:"status"`
		} `json:"alternatives"`
	} `json:"result"`
}

// CompletionRequest is a synchronous, non-streaming completion call.
type CompletionRequest struct {
	ModelURI    string
	Messages    []Message
	Temperature float64
	MaxTokens   int
	// JSONObject asks the service to guarantee a syntactically valid JSON
	// reply.
	JSONObject bool
}

// ModelURI builds the gpt:// URI for a model in a folder.
func ModelURI(folderID, model string) string {
	return fmt.Sprintf("gpt://%s/%s/latest", folderID, model)
}

// Complete returns the text of the first alternative.
func (c *Client) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	respBody, err := c.post(ctx, "completion", c.completionURL, completionRequest{
		ModelURI: req.ModelURI,
		CompletionOptions: completionOptions{
			Stream:      false,
			Temperature: req.Temperature,
			MaxTokens:   req.MaxTokens,
		},
		Messages:   req.Messages,
		JSONObject: req.JSONObject,
	})
	if err != nil {
		return "", err
	}

	var resp completionResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return "", fmt.Errorf("decode completion response: %w", err)
	}
	if len(resp.Result.Alternatives) == 0 {
		return "", fmt.Errorf("completion response has no alternatives")
	}
	return resp.Result.Alternatives[0].Message.Text, nil
}
