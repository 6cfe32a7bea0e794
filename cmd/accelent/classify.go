package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/frenb/accelent/application/classification"
	"github.com/frenb/accelent/application/ports"
	"github.com/frenb/accelent/domain/core/entities"
	"github.com/frenb/accelent/infrastructure/di"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	classifyHint  string
	classifyLocal bool

	classifyCmd = &cobra.Command{
		Use:   "classify [file]",
		Short: "Classify content the way dropped tabs are classified",
		Long: `Reads the file, or standard input when no file is given, and prints
the content category and data format as JSON.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runClassify,
	}
)

func init() {
	classifyCmd.Flags().StringVar(&classifyHint, "hint", "", "category to prefer when the content is ambiguous")
	classifyCmd.Flags().BoolVar(&classifyLocal, "local", false, "use the local heuristic even if a text generator is configured")
}

func runClassify(cmd *cobra.Command, args []string) error {
	var in io.Reader = cmd.InOrStdin()
	if len(args) == 1 {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}
	content, err := io.ReadAll(in)
	if err != nil {
		return fmt.Errorf("failed to read content: %w", err)
	}

	var hint entities.ContentKind
	if classifyHint != "" {
		if hint, err = entities.ParseContentKind(classifyHint); err != nil {
			return err
		}
	}

	var gen ports.TextGenerator
	if !classifyLocal {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		if gen, err = di.ProvideTextGenerator(cfg, zap.NewNop()); err != nil {
			return err
		}
	}

	svc := classification.NewService(gen, 0, ports.NoopMetrics{}, zap.NewNop())
	defer svc.Close()

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(svc.Classify(cmd.Context(), string(content), hint))
}
