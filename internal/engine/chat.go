package engine

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"time"

	"emberd/pkg/types"
)

// tokenLineJSON renders one streamed fragment as an NDJSON line.
func tokenLineJSON(tok string) []byte {
	b, err := json.Marshal(map[string]string{"token": tok})
	if err != nil {
		return []byte("{\"token\":\"\"}\n")
	}
	return append(b, '\n')
}

func finalLineJSON(fields map[string]any) []byte {
	b, err := json.Marshal(fields)
	if err != nil {
		return []byte("{\"done\":true}\n")
	}
	return append(b, '\n')
}

// Chat streams one generation as NDJSON: a {"token":...} line per fragment,
// then a closing line carrying done, content, finish_reason and usage. The
// active session serves it; when the engine has devolved, the scripted
// fallback responder answers instead. With neither, the call is refused.
func (e *Engine) Chat(ctx context.Context, req types.ChatRequest, w io.Writer, flush func()) error {
	if flush == nil {
		flush = func() {}
	}
	release, err := e.beginGeneration(ctx)
	if err != nil {
		return err
	}
	defer release()

	if sess := e.acquireActive(); sess != nil {
		defer sess.refs.Done()
		return e.chatActive(ctx, sess, req, w, flush)
	}

	e.mu.RLock()
	fb := e.fallback
	e.mu.RUnlock()
	if fb == nil {
		return ErrNoActiveSession()
	}
	return e.chatFallback(ctx, fb, req, w, flush)
}

func (e *Engine) chatActive(ctx context.Context, sess *ActiveSession, req types.ChatRequest, w io.Writer, flush func()) error {
	start := time.Now()
	streamed := 0
	onToken := func(tok string) error {
		if _, werr := w.Write(tokenLineJSON(tok)); werr != nil {
			return werr
		}
		flush()
		streamed++
		chatTokensTotal.Inc()
		return nil
	}

	final, err := sess.Session.Generate(ctx, req, onToken)
	if err != nil {
		log.Printf("engine event=chat_error model=%q backend=%s err=%v", sess.Model.ID, sess.Backend.Kind, err)
		if streamed == 0 {
			return err
		}
		// The stream is already underway; close it with an error line
		// instead of a bare disconnect.
		_, _ = w.Write(finalLineJSON(map[string]any{"done": true, "error": err.Error()}))
		flush()
		return nil
	}

	line := finalLineJSON(map[string]any{
		"done":          true,
		"content":       final.Content,
		"finish_reason": final.FinishReason,
		"model":         sess.Model.ID,
		"backend":       string(sess.Backend.Kind),
		"usage": map[string]any{
			"prompt_tokens":     final.PromptTokens,
			"completion_tokens": final.CompletionTokens,
		},
	})
	if _, werr := w.Write(line); werr != nil {
		return werr
	}
	flush()
	log.Printf("engine event=chat_done model=%q backend=%s tokens=%d dur_ms=%d",
		sess.Model.ID, sess.Backend.Kind, streamed, time.Since(start).Milliseconds())
	return nil
}

func (e *Engine) chatFallback(ctx context.Context, fb *fallbackResponder, req types.ChatRequest, w io.Writer, flush func()) error {
	content := fb.Reply(req.Prompt)
	for i, chunk := range fallbackChunks(content) {
		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(fallbackChunkDelay):
			}
		}
		if _, werr := w.Write(tokenLineJSON(chunk)); werr != nil {
			return werr
		}
		flush()
		chatTokensTotal.Inc()
	}
	line := finalLineJSON(map[string]any{
		"done":          true,
		"content":       content,
		"finish_reason": "stop",
		"model":         fb.model,
		"fallback":      true,
		"usage": map[string]any{
			"prompt_tokens":     0,
			"completion_tokens": 0,
		},
	})
	if _, werr := w.Write(line); werr != nil {
		return werr
	}
	flush()
	log.Printf("engine event=chat_done model=%q backend=fallback dur_ms=0", fb.model)
	return nil
}
