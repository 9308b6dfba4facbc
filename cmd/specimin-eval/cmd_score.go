package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/timsvoice/specimin/internal/execution"
	"github.com/timsvoice/specimin/internal/judge"
	"github.com/timsvoice/specimin/internal/rubric"
)

var (
	judgeKind  string
	judgeModel string
)

func newScoreCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "score <case-dir>",
		Short: "Score a case's generated artifacts with a judge",
		Long: `Send the spec, plan and implementation of a case to a language-model judge,
one rubric per artifact, and merge the extracted scores into the case's result
record. The case must have been executed first.

Rubrics can be overridden with <kind>.yaml files in judge.rubrics_dir.`,
		Args: cobra.ExactArgs(1),
		RunE: scoreCommandE,
	}

	cmd.Flags().StringVar(&judgeKind, "judge", "", "Judge to use: copilot or openai (default from config)")
	cmd.Flags().StringVar(&judgeModel, "model", "", "Judge model (default from config)")

	return cmd
}

func scoreCommandE(cmd *cobra.Command, args []string) error {
	cfg, err := loadProjectConfig()
	if err != nil {
		return err
	}
	if judgeKind != "" {
		cfg.Judge.Kind = judgeKind
	}
	if judgeModel != "" {
		cfg.Judge.Model = judgeModel
	}

	tc, err := execution.LoadCase(args[0], cfg.Layout)
	if err != nil {
		return err
	}

	rubrics, err := rubric.Load(cfg.Judge.RubricsDir)
	if err != nil {
		return err
	}

	j, err := judge.New(cfg.Judge)
	if err != nil {
		return err
	}
	defer func() {
		if err := j.Close(); err != nil {
			slog.Warn("failed to close judge", "error", err)
		}
	}()

	scorer := judge.NewScorer(j, rubrics, cfg.Layout)

	scores, err := scorer.ScoreCase(commandContext(cmd), tc)
	if err != nil {
		return err
	}
	if len(scores) == 0 {
		return fmt.Errorf("no artifacts to score in %s", tc.CaseDir)
	}

	record, err := scorer.MergeScores(tc, scores)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), record.RubricScores)
}
