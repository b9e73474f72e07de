package emberctl

import (
	"os"

	"github.com/spf13/cobra"
)

// buildRootCmd constructs a Cobra command tree wired to the fn* actions.
func buildRootCmd(cfg *Config) *cobra.Command {
	root := &cobra.Command{
		Use:           "emberctl",
		Short:         "Inspect and manage local model artifacts without a running emberd",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Persistent flags -> Config
	root.PersistentFlags().StringVar(&cfg.ModelsDir, "models-dir", cfg.ModelsDir, "Models directory (defaults EMBERD_MODELS_DIR or ~/models/llm)")
	root.PersistentFlags().StringVar(&cfg.CatalogPath, "catalog", cfg.CatalogPath, "Curated catalog file, yaml or json (defaults EMBERD_CATALOG; empty uses the built-in list)")
	root.PersistentFlags().StringVar(&cfg.NPUCatalogPath, "npu-catalog", cfg.NPUCatalogPath, "Alternate curated catalog used on NPU hosts (defaults EMBERD_NPU_CATALOG)")
	root.PersistentFlags().BoolVar(&cfg.PreferNPU, "prefer-npu", cfg.PreferNPU, "Rank NPU-class backends first (defaults EMBERD_PREFER_NPU or true)")
	root.PersistentFlags().BoolVar(&cfg.JSON, "json", cfg.JSON, "Print machine-readable JSON instead of tables")

	catalogCmd := &cobra.Command{Use: "catalog", Short: "Merge the directory scan with the curated catalog and print it", Example: "  emberctl catalog\n  emberctl catalog --json", Args: cobra.NoArgs, RunE: func(cmd *cobra.Command, args []string) error {
		return fnCatalog(cfg, cmd.OutOrStdout())
	}}

	var backendsAll bool
	backendsCmd := &cobra.Command{Use: "backends", Short: "Probe compute backends and print them in activation order", Args: cobra.NoArgs, RunE: func(cmd *cobra.Command, args []string) error {
		return fnBackends(cfg, backendsAll, cmd.OutOrStdout())
	}}
	backendsCmd.Flags().BoolVar(&backendsAll, "all", false, "Include unavailable backends")

	fetchCmd := &cobra.Command{Use: "fetch <model-id>", Short: "Download a model artifact with resume, verify it and promote it into place", Example: "  emberctl fetch tinyllama-1.1b-chat-v1.0.Q4_K_M.gguf", Args: cobra.ExactArgs(1), RunE: func(cmd *cobra.Command, args []string) error {
		return fnFetch(cmd.Context(), cfg, args[0], cmd.OutOrStdout())
	}}
	fetchCmd.Flags().Int64Var(&cfg.RateLimitBps, "rate-limit-bps", 0, "Cap download bandwidth in bytes per second (0 = unlimited)")

	verifyCmd := &cobra.Command{Use: "verify <model-id>", Short: "Recompute a local artifact's SHA-256 and compare it to the catalog hash", Args: cobra.ExactArgs(1), RunE: func(cmd *cobra.Command, args []string) error {
		return fnVerify(cmd.Context(), cfg, args[0], cmd.OutOrStdout())
	}}

	hashCmd := &cobra.Command{Use: "hash <file>", Short: "Print the streamed SHA-256 of a file", Args: cobra.ExactArgs(1), RunE: func(cmd *cobra.Command, args []string) error {
		return fnHash(cmd.Context(), args[0], cmd.OutOrStdout())
	}}

	rmCmd := &cobra.Command{Use: "rm <model-id>", Short: "Delete a model's local bytes, clearing a failed verification", Args: cobra.ExactArgs(1), RunE: func(cmd *cobra.Command, args []string) error {
		return fnRemove(cfg, args[0], cmd.OutOrStdout())
	}}

	root.AddCommand(catalogCmd, backendsCmd, fetchCmd, verifyCmd, hashCmd, rmCmd)

	// completion command
	completionCmd := &cobra.Command{Use: "completion", Short: "Generate the autocompletion script for the specified shell"}
	completionCmd.AddCommand(&cobra.Command{Use: "bash", Short: "Bash completion", RunE: func(cmd *cobra.Command, args []string) error { return root.GenBashCompletion(os.Stdout) }})
	completionCmd.AddCommand(&cobra.Command{Use: "zsh", Short: "Zsh completion", RunE: func(cmd *cobra.Command, args []string) error { return root.GenZshCompletion(os.Stdout) }})
	completionCmd.AddCommand(&cobra.Command{Use: "fish", Short: "Fish completion", RunE: func(cmd *cobra.Command, args []string) error { return root.GenFishCompletion(os.Stdout, true) }})
	completionCmd.AddCommand(&cobra.Command{Use: "powershell", Short: "PowerShell completion", RunE: func(cmd *cobra.Command, args []string) error { return root.GenPowerShellCompletionWithDesc(os.Stdout) }})
	root.AddCommand(completionCmd)

	return root
}
