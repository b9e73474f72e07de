// Package emberctl implements the emberctl command line tool: offline
// catalog inspection, artifact download with resume, hash verification and
// backend probing against a local models directory, without a running
// emberd. It shares the daemon's catalog, transfer and integrity packages,
// so both tools agree on merge rules, partial-file naming and hashes.
package emberctl

import (
	"fmt"
	"os"
	"strings"
)

// Config carries the global options shared by all subcommands.
type Config struct {
	ModelsDir      string
	CatalogPath    string
	NPUCatalogPath string
	PreferNPU      bool
	RateLimitBps   int64
	JSON           bool
}

// DefaultConfig seeds options from the environment so scripts can configure
// emberctl the same way they configure emberd.
func DefaultConfig() *Config {
	return &Config{
		ModelsDir:      envStr("EMBERD_MODELS_DIR", "~/models/llm"),
		CatalogPath:    envStr("EMBERD_CATALOG", ""),
		NPUCatalogPath: envStr("EMBERD_NPU_CATALOG", ""),
		PreferNPU:      envBool("EMBERD_PREFER_NPU", true),
	}
}

// MainWithArgs is a testable variant of Main that accepts args explicitly.
// It returns an exit code (0 for success, non-zero on error).
func MainWithArgs(args []string) int {
	root := buildRootCmd(DefaultConfig())
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "emberctl:", err.Error())
		return 1
	}
	return 0
}

// Main returns an exit code (0 for success, non-zero on error) for use by cmd/emberctl.
func Main() int { return MainWithArgs(os.Args[1:]) }

// Env helpers
func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	s := strings.ToLower(v)
	return s == "1" || s == "true" || s == "yes"
}
