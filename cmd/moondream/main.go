// Command moondream runs a single text prompt (it has no image input)
// through the on-device inference engine and prints the generated text,
// followed by the timing line Generate always reports.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/vlmcl/moondream/envconfig"
	"github.com/vlmcl/moondream/gpu"
	"github.com/vlmcl/moondream/model"
	"github.com/vlmcl/moondream/tokenizer"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "moondream:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cobra.EnableCommandSorting = false

	cmd := &cobra.Command{
		Use:           "moondream",
		Short:         "Run a Moondream2-class vision-language model on-device via OpenCL",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runHandler,
	}

	cmd.Flags().String("model", "", "path to the quantized weight container (required)")
	cmd.Flags().String("kernels", "kernels", "directory containing the .cl kernel sources")
	cmd.Flags().String("vocab", "", "path to a vocabulary text file (used only when the container has no tokenizer metadata)")
	cmd.Flags().String("prompt", "", "prompt text (required)")
	cmd.Flags().Int("max-tokens", 256, "maximum number of tokens to generate")
	cmd.MarkFlagRequired("model")
	cmd.MarkFlagRequired("prompt")

	return cmd
}

func runHandler(cmd *cobra.Command, args []string) error {
	slog.SetLogLoggerLevel(envconfig.LogLevel())

	modelPath, _ := cmd.Flags().GetString("model")
	kernelDir, _ := cmd.Flags().GetString("kernels")
	vocabPath, _ := cmd.Flags().GetString("vocab")
	prompt, _ := cmd.Flags().GetString("prompt")
	maxTokens, _ := cmd.Flags().GetInt("max-tokens")

	device, err := gpu.Open()
	if err != nil {
		return fmt.Errorf("open device: %w", err)
	}
	defer device.Close()
	slog.Default().LogAttrs(context.Background(), slog.LevelInfo, "device ready", device.Capabilities().LogFields()...)

	cfg := model.DefaultConfig()
	cfg.MaxContext = envconfig.DefaultMaxContext()

	m, err := model.Load(device, modelPath, kernelDir, cfg, envconfig.ExtraBuildOptions()...)
	if err != nil {
		return fmt.Errorf("load model: %w", err)
	}
	defer m.Close()

	vocab, err := tokenizer.Load(m.Container(), vocabPath)
	if err != nil {
		slog.Warn("no vocabulary available, falling back to per-byte encoding", "err", err)
		vocab = tokenizer.NewByteVocabulary()
	}

	stats, err := m.Generate(vocab, prompt, maxTokens, nil, os.Stdout)
	if err != nil {
		return fmt.Errorf("generate: %w", err)
	}
	fmt.Println()
	fmt.Fprintf(os.Stderr, "prompt_tokens=%d generated_tokens=%d prefill_ms=%.1f decode_ms=%.1f tokens_per_sec=%.2f\n",
		stats.PromptTokens, stats.GeneratedTokens, stats.PrefillMillis, stats.DecodeMillis, stats.DecodeTokensPerSec)
	return nil
}
