package engine

import (
	"fmt"
	"strings"
	"time"
)

// fallbackChunkDelay paces scripted streaming so clients render it the way
// they render real token streams.
const fallbackChunkDelay = 15 * time.Millisecond

// fallbackResponder answers chat with scripted, deterministic text after
// every backend refused a model. It keeps the per-backend failures so a
// user asking "why" gets the actual reasons.
type fallbackResponder struct {
	model    string
	reason   string
	failures []BackendFailure
}

func newFallbackResponder(model string, failures []BackendFailure) *fallbackResponder {
	return &fallbackResponder{
		model:    model,
		reason:   fmt.Sprintf("no usable backend for %s", model),
		failures: failures,
	}
}

// Reply picks a canned answer keyed on the prompt. Deterministic on
// purpose: the same prompt always yields the same text.
func (f *fallbackResponder) Reply(prompt string) string {
	p := strings.ToLower(prompt)
	switch {
	case strings.Contains(p, "why") || strings.Contains(p, "error") ||
		strings.Contains(p, "backend") || strings.Contains(p, "status"):
		return f.diagnostic()
	case strings.Contains(p, "hello") || strings.Contains(p, "hi ") || p == "hi":
		return fmt.Sprintf("Hello. The model %s could not be started on any detected backend, "+
			"so a limited fallback responder is answering. Ask \"why\" for details.", f.model)
	case strings.Contains(p, "code"):
		return "Code generation needs a real model session, which is not running. " +
			"A fallback responder cannot write code; activate a code-capable model first."
	case strings.Contains(p, "model"):
		return fmt.Sprintf("The requested model is %s. It is present in the catalog but no backend "+
			"accepted it; GET /models lists alternatives you can activate instead.", f.model)
	case strings.Contains(p, "help"):
		return "Available while in fallback: ask \"why\" for the per-backend failures, " +
			"GET /status for engine state, GET /models for the catalog, POST /activate to retry."
	default:
		return fmt.Sprintf("The model %s is not running; this is a scripted fallback reply. "+
			"Check GET /status for per-backend errors, fix the runtime or drivers, "+
			"and activate the model again.", f.model)
	}
}

func (f *fallbackResponder) diagnostic() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Every detected backend refused %s:\n", f.model)
	for _, fail := range f.failures {
		fmt.Fprintf(&b, "- %s: %s\n", fail.Backend, fail.Error)
	}
	b.WriteString("The model stays unloaded until a backend accepts it. " +
		"Fix the reported condition and POST /activate again.")
	return b.String()
}

// fallbackChunks splits scripted text into word-sized stream fragments so
// fallback chat looks like token streaming to clients.
func fallbackChunks(s string) []string {
	words := strings.Fields(s)
	out := make([]string, 0, len(words))
	for i, wrd := range words {
		if i == 0 {
			out = append(out, wrd)
			continue
		}
		out = append(out, " "+wrd)
	}
	return out
}
