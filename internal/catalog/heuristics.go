package catalog

import (
	"path/filepath"
	"regexp"
	"strings"
)

// displayName is the artifact filename without its extension. Curated
// entries replace it with a human name when known.
func displayName(file string) string {
	return strings.TrimSuffix(file, filepath.Ext(file))
}

// familyMarkers is ordered: more specific names come before their
// substrings (tinyllama before llama).
var familyMarkers = []string{
	"tinyllama",
	"codellama",
	"llama",
	"mixtral",
	"mistral",
	"qwen",
	"phi",
	"gemma",
	"deepseek",
	"granite",
	"smollm",
}

func familyOf(file string) string {
	lower := strings.ToLower(file)
	for _, f := range familyMarkers {
		if strings.Contains(lower, f) {
			return f
		}
	}
	return ""
}

// quantRe matches quantization tokens as they appear in artifact names:
// GGUF quant codes (Q4_K_M, Q8_0, IQ2_XS), float precisions and integer
// ONNX variants.
var quantRe = regexp.MustCompile(`^(?i)(i?q[0-9][0-9a-z_]*|f16|f32|bf16|fp16|int[48])$`)

func quantOf(file string) string {
	for _, tok := range nameTokens(file) {
		if quantRe.MatchString(tok) {
			return tok
		}
	}
	return ""
}

func flavorOf(file string) string {
	for _, tok := range nameTokens(file) {
		switch strings.ToLower(tok) {
		case "chat":
			return "chat"
		case "instruct", "it":
			return "instruct"
		case "code", "coder":
			return "code"
		}
	}
	return ""
}

// nameTokens splits a filename on dots, dashes and spaces. Underscores stay
// inside tokens so quant codes like Q4_K_M survive.
func nameTokens(file string) []string {
	base := strings.TrimSuffix(file, filepath.Ext(file))
	return strings.FieldsFunc(base, func(r rune) bool {
		return r == '.' || r == '-' || r == ' '
	})
}
