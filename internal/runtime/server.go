package runtime

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"emberd/internal/config"
	"emberd/pkg/types"
)

// serverFactory drives an already running OpenAI-compatible completion
// server. Placement is the remote server's business, so every backend kind
// is accepted; a host that routes to such a server typically fronts NPU or
// GPU runtimes emberd cannot load in-process.
type serverFactory struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func newServerFactory(cfg config.RuntimeConfig) *serverFactory {
	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	// Timeout stays 0: streaming responses live for minutes and every
	// request carries a context.
	return &serverFactory{
		baseURL: strings.TrimRight(cfg.ServerURL, "/"),
		apiKey:  cfg.APIKey,
		client:  &http.Client{Transport: tr, Timeout: 0},
	}
}

func (f *serverFactory) Name() string { return "server" }

func (f *serverFactory) Available() (bool, string) {
	if f.baseURL == "" {
		return false, "no server URL configured"
	}
	if err := f.healthcheck(2 * time.Second); err != nil {
		return false, err.Error()
	}
	return true, f.baseURL
}

func (f *serverFactory) Supports(types.BackendKind) bool { return true }

func (f *serverFactory) Open(ctx context.Context, rec types.ModelRecord, backend types.BackendKind) (Session, error) {
	if f.baseURL == "" {
		return nil, ErrDependencyUnavailable("no server URL configured")
	}
	if err := f.healthcheck(2 * time.Second); err != nil {
		return nil, ErrDependencyUnavailable(fmt.Sprintf("server %s: %v", f.baseURL, err))
	}
	return &serverSession{
		client:  f.client,
		baseURL: f.baseURL,
		apiKey:  f.apiKey,
		model:   rec.ID,
		backend: backend,
	}, nil
}

func (f *serverFactory) healthcheck(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.baseURL+"/v1/models", nil)
	if err != nil {
		return err
	}
	if f.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+f.apiKey)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("health status %s", resp.Status)
	}
	return nil
}

// serverSession streams completions from an OpenAI-compatible endpoint. It
// is also reused by the spawn adapter, pointed at the subprocess's loopback
// address.
type serverSession struct {
	client  *http.Client
	baseURL string
	apiKey  string
	model   string
	backend types.BackendKind
}

func (s *serverSession) Model() string              { return s.model }
func (s *serverSession) Backend() types.BackendKind { return s.backend }
func (s *serverSession) Close() error               { return nil }

// openAICompletionRequest is the /v1/completions payload. repeat_penalty is
// not standard OpenAI but llama.cpp servers accept it; others ignore it.
type openAICompletionRequest struct {
	Model         string   `json:"model,omitempty"`
	Prompt        string   `json:"prompt"`
	MaxTokens     int      `json:"max_tokens,omitempty"`
	Temperature   float32  `json:"temperature,omitempty"`
	TopP          float32  `json:"top_p,omitempty"`
	TopK          int      `json:"top_k,omitempty"`
	Stop          []string `json:"stop,omitempty"`
	Seed          int      `json:"seed,omitempty"`
	Stream        bool     `json:"stream"`
	RepeatPenalty float32  `json:"repeat_penalty,omitempty"`
}

// openAIStreamResponse is the minimal subset of a streaming chunk we need.
// Text completions put the fragment in choices[].text, chat-shaped servers
// in choices[].delta.content; both are handled.
type openAIStreamResponse struct {
	Choices []struct {
		Text  string `json:"text"`
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

func (s *serverSession) Generate(ctx context.Context, req types.ChatRequest, onToken TokenFunc) (Result, error) {
	payload := openAICompletionRequest{
		Model:         s.model,
		Prompt:        req.Prompt,
		MaxTokens:     req.MaxTokens,
		Temperature:   float32(req.Temperature),
		TopP:          float32(req.TopP),
		TopK:          req.TopK,
		Stop:          req.Stop,
		Seed:          int(req.Seed),
		Stream:        true,
		RepeatPenalty: float32(req.RepeatPenalty),
	}
	return completionStream(ctx, s.client, s.baseURL, s.apiKey, payload, onToken)
}

// completionStream posts the payload and folds the SSE stream into onToken
// calls. Lines start with "data:"; "[DONE]" terminates the stream.
func completionStream(ctx context.Context, client *http.Client, baseURL, apiKey string, payload openAICompletionRequest, onToken TokenFunc) (Result, error) {
	body, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/v1/completions", bytes.NewReader(body))
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		return Result{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return Result{}, fmt.Errorf("completion server error: %s: %s", resp.Status, strings.TrimSpace(string(b)))
	}

	r := bufio.NewReader(resp.Body)
	var final Result
	var content strings.Builder
	for {
		line, err := r.ReadString('\n')
		if len(line) > 0 {
			l := strings.TrimSpace(line)
			if l != "" && strings.HasPrefix(strings.ToLower(l), "data:") {
				data := strings.TrimSpace(l[len("data:"):])
				if data == "[DONE]" {
					break
				}
				var msg openAIStreamResponse
				if uerr := json.Unmarshal([]byte(data), &msg); uerr == nil && (len(msg.Choices) > 0 || msg.Usage != nil) {
					if msg.Usage != nil {
						final.PromptTokens = msg.Usage.PromptTokens
						final.CompletionTokens = msg.Usage.CompletionTokens
					}
					if len(msg.Choices) > 0 {
						frag := msg.Choices[0].Text
						if frag == "" {
							frag = msg.Choices[0].Delta.Content
						}
						if frag != "" {
							content.WriteString(frag)
							if cbErr := onToken(frag); cbErr != nil {
								final.Content = content.String()
								return final, cbErr
							}
						}
						if fr := msg.Choices[0].FinishReason; fr != "" {
							final.FinishReason = fr
						}
					}
					continue
				}
				log.Printf("adapter=server event=unknown_stream_line line=%q", l)
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			if ctx.Err() != nil {
				final.Content = content.String()
				return final, ctx.Err()
			}
			final.Content = content.String()
			return final, err
		}
	}
	final.Content = content.String()
	if final.FinishReason == "" {
		final.FinishReason = "stop"
	}
	return final, nil
}
