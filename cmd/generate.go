package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"script_ai_server/internal/types"
	"script_ai_server/internal/utils"

	"github.com/spf13/cobra"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate one project from the command line and store it",
	RunE: func(cmd *cobra.Command, args []string) error {
		stack, err := cmd.Flags().GetString("stack")
		if err != nil {
			return err
		}
		description, err := cmd.Flags().GetString("description")
		if err != nil {
			return err
		}
		stack, description = strings.TrimSpace(stack), strings.TrimSpace(description)
		if stack == "" || description == "" {
			return errors.New("both --stack and --description are required")
		}

		a, err := bootstrap()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		result := a.generator.Generate(ctx, types.GenerationRequest{Description: description, Stack: stack})
		if !result.OK() || len(result.Files) == 0 {
			return fmt.Errorf("generation failed: %s", result.Error)
		}

		project := utils.ProjectName(description)
		written, err := a.store.SaveProject(ctx, project, result.Files)
		if err != nil {
			return fmt.Errorf("failed to store project %s: %w", project, err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%s (%d files in %s)\n", project, written, a.cfg.GeneratedScriptsDir)
		return nil
	},
}

func init() {
	generateCmd.Flags().StringP("stack", "s", "", "Target stack, e.g. Python or Bash")
	generateCmd.Flags().StringP("description", "d", "", "What the script should do")
	generateCmd.MarkFlagRequired("stack")
	generateCmd.MarkFlagRequired("description")
}
