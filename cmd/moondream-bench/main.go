// Command moondream-bench measures prefill and decode throughput for a
// loaded container without needing a real prompt or tokenizer, by driving
// Model.Forward directly over a synthetic token sequence. Uses the same
// wall-clock timing convention model.Generate itself uses for
// GenerationStats, just with the tokenizer stage skipped.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/vlmcl/moondream/envconfig"
	"github.com/vlmcl/moondream/gpu"
	"github.com/vlmcl/moondream/model"
)

func main() {
	cmd := newRootCmd()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "moondream-bench:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "moondream-bench",
		Short:         "Benchmark prefill and decode throughput of a loaded container",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runHandler,
	}
	cmd.Flags().String("model", "", "path to the quantized weight container (required)")
	cmd.Flags().String("kernels", "kernels", "directory containing the .cl kernel sources")
	cmd.Flags().Int("prompt-len", 64, "synthetic prefill length, in tokens")
	cmd.Flags().Int("decode-steps", 32, "number of synthetic single-token decode steps to run after prefill")
	cmd.MarkFlagRequired("model")
	return cmd
}

func runHandler(cmd *cobra.Command, args []string) error {
	slog.SetLogLoggerLevel(envconfig.LogLevel())

	modelPath, _ := cmd.Flags().GetString("model")
	kernelDir, _ := cmd.Flags().GetString("kernels")
	promptLen, _ := cmd.Flags().GetInt("prompt-len")
	decodeSteps, _ := cmd.Flags().GetInt("decode-steps")

	device, err := gpu.Open()
	if err != nil {
		return fmt.Errorf("open device: %w", err)
	}
	defer device.Close()

	cfg := model.DefaultConfig()
	cfg.MaxContext = envconfig.DefaultMaxContext()

	m, err := model.Load(device, modelPath, kernelDir, cfg, envconfig.ExtraBuildOptions()...)
	if err != nil {
		return fmt.Errorf("load model: %w", err)
	}
	defer m.Close()

	tokens := make([]int32, promptLen)
	for i := range tokens {
		tokens[i] = int32(i % cfg.VocabSize)
	}

	prefillStart := time.Now()
	if _, err := m.Forward(tokens); err != nil {
		return fmt.Errorf("prefill: %w", err)
	}
	prefillElapsed := time.Since(prefillStart)

	decodeStart := time.Now()
	for step := 0; step < decodeSteps; step++ {
		if _, err := m.Forward([]int32{int32(step % cfg.VocabSize)}); err != nil {
			return fmt.Errorf("decode step %d: %w", step, err)
		}
	}
	decodeElapsed := time.Since(decodeStart)

	fmt.Printf("prefill: %d tokens in %s (%.2f tok/s)\n",
		promptLen, prefillElapsed, float64(promptLen)/prefillElapsed.Seconds())
	if decodeSteps > 0 {
		fmt.Printf("decode: %d steps in %s (%.2f tok/s)\n",
			decodeSteps, decodeElapsed, float64(decodeSteps)/decodeElapsed.Seconds())
	}
	return nil
}
