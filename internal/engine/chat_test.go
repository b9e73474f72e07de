package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"emberd/pkg/types"
)

func ndjsonLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("bad NDJSON line %q: %v", line, err)
		}
		out = append(out, m)
	}
	return out
}

func TestChatStreamsTokensAsNDJSON(t *testing.T) {
	factory := newFakeFactory()
	factory.tokens = []string{"Hello", " world"}
	factory.result.PromptTokens = 3
	factory.result.CompletionTokens = 2
	eng, store := newTestEngine(t, factory, cpuOnly(), EngineConfig{})
	localRecord(t, store, "tiny.gguf")
	if err := eng.Activate(context.Background(), "tiny.gguf", nil); err != nil {
		t.Fatalf("activate: %v", err)
	}

	var buf bytes.Buffer
	flushes := 0
	err := eng.Chat(context.Background(), types.ChatRequest{Prompt: "hi"}, &buf, func() { flushes++ })
	if err != nil {
		t.Fatalf("chat: %v", err)
	}

	lines := ndjsonLines(t, &buf)
	if len(lines) != 3 {
		t.Fatalf("lines = %d, want 2 tokens + 1 final", len(lines))
	}
	if lines[0]["token"] != "Hello" || lines[1]["token"] != " world" {
		t.Fatalf("token lines = %v", lines[:2])
	}
	final := lines[2]
	if final["done"] != true || final["content"] != "Hello world" {
		t.Fatalf("final line = %v", final)
	}
	if final["finish_reason"] != "stop" || final["model"] != "tiny.gguf" || final["backend"] != "cpu" {
		t.Fatalf("final metadata = %v", final)
	}
	usage, ok := final["usage"].(map[string]any)
	if !ok || usage["completion_tokens"] != float64(2) || usage["prompt_tokens"] != float64(3) {
		t.Fatalf("usage = %v", final["usage"])
	}
	if flushes < 3 {
		t.Fatalf("flushes = %d, want one per line", flushes)
	}
}

func TestChatWithoutSessionIsRefused(t *testing.T) {
	eng, _ := newTestEngine(t, newFakeFactory(), cpuOnly(), EngineConfig{})

	var buf bytes.Buffer
	err := eng.Chat(context.Background(), types.ChatRequest{Prompt: "hi"}, &buf, nil)
	if !IsNoActiveSession(err) {
		t.Fatalf("err = %v, want no active session", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("nothing should be written, got %q", buf.String())
	}
}

func TestChatFallbackAnswersScripted(t *testing.T) {
	factory := newFakeFactory()
	factory.openErr[types.BackendCPU] = errors.New("insufficient memory")
	eng, store := newTestEngine(t, factory, cpuOnly(), EngineConfig{})
	localRecord(t, store, "tiny.gguf")

	if err := eng.Activate(context.Background(), "tiny.gguf", nil); !IsExhaustedBackends(err) {
		t.Fatalf("activate err = %v, want exhausted backends", err)
	}

	var buf bytes.Buffer
	if err := eng.Chat(context.Background(), types.ChatRequest{Prompt: "why is this failing?"}, &buf, nil); err != nil {
		t.Fatalf("fallback chat: %v", err)
	}
	lines := ndjsonLines(t, &buf)
	if len(lines) < 2 {
		t.Fatalf("lines = %d, want streamed tokens plus final", len(lines))
	}
	final := lines[len(lines)-1]
	if final["done"] != true || final["fallback"] != true {
		t.Fatalf("final line = %v", final)
	}
	content, _ := final["content"].(string)
	if !strings.Contains(content, "cpu") || !strings.Contains(content, "insufficient memory") {
		t.Fatalf("diagnostic content should name the backend failure, got %q", content)
	}

	// Same prompt, same scripted answer.
	var again bytes.Buffer
	if err := eng.Chat(context.Background(), types.ChatRequest{Prompt: "why is this failing?"}, &again, nil); err != nil {
		t.Fatalf("second fallback chat: %v", err)
	}
	lines2 := ndjsonLines(t, &again)
	if got := lines2[len(lines2)-1]["content"]; got != content {
		t.Fatalf("fallback reply not deterministic: %q vs %q", got, content)
	}
}

func TestChatRefusedWhenSaturated(t *testing.T) {
	factory := newFakeFactory()
	factory.genGate = make(chan struct{})
	factory.genStarted = make(chan struct{})
	eng, store := newTestEngine(t, factory, cpuOnly(), EngineConfig{
		MaxQueueDepth: 1,
		MaxWait:       80 * time.Millisecond,
	})
	localRecord(t, store, "tiny.gguf")
	if err := eng.Activate(context.Background(), "tiny.gguf", nil); err != nil {
		t.Fatalf("activate: %v", err)
	}

	firstErr := make(chan error, 1)
	go func() {
		firstErr <- eng.Chat(context.Background(), types.ChatRequest{Prompt: "slow"}, io.Discard, nil)
	}()
	<-factory.genStarted

	// The inflight slot is held; with a queue depth of one, two more
	// requests exhaust queue and wait budget.
	busy := make(chan error, 2)
	go func() {
		busy <- eng.Chat(context.Background(), types.ChatRequest{Prompt: "q1"}, io.Discard, nil)
	}()
	go func() {
		busy <- eng.Chat(context.Background(), types.ChatRequest{Prompt: "q2"}, io.Discard, nil)
	}()
	for i := 0; i < 2; i++ {
		select {
		case err := <-busy:
			if !IsTooBusy(err) {
				t.Fatalf("saturated chat err = %v, want too busy", err)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("saturated chat did not return")
		}
	}

	close(factory.genGate)
	if err := <-firstErr; err != nil {
		t.Fatalf("first chat: %v", err)
	}
}

func TestDeactivateWaitsForInflightChat(t *testing.T) {
	factory := newFakeFactory()
	factory.genGate = make(chan struct{})
	factory.genStarted = make(chan struct{})
	eng, store := newTestEngine(t, factory, cpuOnly(), EngineConfig{DrainTimeout: 5 * time.Second})
	localRecord(t, store, "tiny.gguf")
	if err := eng.Activate(context.Background(), "tiny.gguf", nil); err != nil {
		t.Fatalf("activate: %v", err)
	}

	chatErr := make(chan error, 1)
	go func() {
		chatErr <- eng.Chat(context.Background(), types.ChatRequest{Prompt: "slow"}, io.Discard, nil)
	}()
	<-factory.genStarted

	deactDone := make(chan struct{})
	go func() {
		_ = eng.Deactivate(context.Background())
		close(deactDone)
	}()

	// The generation is still running, so the session must not be closed
	// out from under it.
	time.Sleep(50 * time.Millisecond)
	if n := factory.closedCount("tiny.gguf"); n != 0 {
		t.Fatalf("session closed while a generation was in flight (%d)", n)
	}

	close(factory.genGate)
	if err := <-chatErr; err != nil {
		t.Fatalf("inflight chat: %v", err)
	}
	<-deactDone
	if n := factory.closedCount("tiny.gguf"); n != 1 {
		t.Fatalf("session closed %d times after drain, want 1", n)
	}
}
