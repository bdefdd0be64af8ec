// Package chat opens a streaming chat-completion request against an
// OpenAI-compatible endpoint and yields chunks over a channel.
package chat

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/leoho0722/gpu-delegater/internal/gpudispatch"
)

// Request carries everything the Inference Orchestrator resolved before
// opening the stream.
type Request struct {
	Model        string
	SystemPrompt string
	UserPrompt   string
	Temperature  float64
	MaxTokens    int
}

// Chunk is one piece of a streamed chat completion.
type Chunk struct {
	Content string
	Done    bool
	Err     error
}

// Client opens OpenAI-compatible chat-completion streams.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

func NewClient(httpClient *http.Client, baseURL string) *Client {
	return &Client{httpClient: httpClient, baseURL: baseURL}
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type streamRequestBody struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Stream      bool      `json:"stream"`
}

type streamDelta struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
}

// Stream opens the chat-completion stream and returns a channel of chunks.
// The channel closes when the upstream closes or ctx is cancelled. Chunks
// within one stream preserve server-emitted order; the default wall-time
// budget is 600s.
func (c *Client) Stream(ctx context.Context, apiKey string, req Request) (<-chan Chunk, error) {
	ctx, cancel := context.WithTimeout(ctx, 600*time.Second)

	msgs := []message{}
	if req.SystemPrompt != "" {
		msgs = append(msgs, message{Role: "system", Content: req.SystemPrompt})
	}
	msgs = append(msgs, message{Role: "user", Content: req.UserPrompt})

	body, err := json.Marshal(streamRequestBody{
		Model:       req.Model,
		Messages:    msgs,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Stream:      true,
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to marshal chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		cancel()
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		cancel()
		return nil, gpudispatch.NetworkErr(err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		defer cancel()
		return nil, gpudispatch.StreamFailed(fmt.Errorf("chat endpoint returned status %d", resp.StatusCode))
	}

	out := make(chan Chunk)
	go func() {
		defer cancel()
		defer resp.Body.Close()
		defer close(out)

		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || !strings.HasPrefix(line, "data:") {
				continue
			}
			payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if payload == "[DONE]" {
				return
			}

			var delta streamDelta
			if err := json.Unmarshal([]byte(payload), &delta); err != nil {
				select {
				case out <- Chunk{Err: gpudispatch.StreamFailed(err)}:
				case <-ctx.Done():
				}
				return
			}

			for _, choice := range delta.Choices {
				if choice.Delta.Content == "" {
					continue
				}
				select {
				case out <- Chunk{Content: choice.Delta.Content}:
				case <-ctx.Done():
					return
				}
			}
		}
		if err := scanner.Err(); err != nil {
			select {
			case out <- Chunk{Err: gpudispatch.StreamFailed(err)}:
			case <-ctx.Done():
			}
		}
	}()

	return out, nil
}
