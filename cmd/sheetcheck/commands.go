package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pavelanni/sheetcheck/internal/export"
	"github.com/pavelanni/sheetcheck/internal/grader"
	appI18n "github.com/pavelanni/sheetcheck/internal/i18n"
	"github.com/pavelanni/sheetcheck/internal/model"
	"github.com/pavelanni/sheetcheck/internal/report"
	"github.com/pavelanni/sheetcheck/internal/stats"
	"github.com/pavelanni/sheetcheck/internal/workflow"
)

func gradeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "grade",
		Short: "Upload an answer key and student responses, then print the graded report",
		RunE:  runGrade,
	}
	f := cmd.Flags()
	f.StringP("answer-key", "k", "", "Answer key file (required)")
	f.StringP("responses", "r", "", "Student responses file (required)")
	f.StringP("output", "o", "", "Also export results to this file or directory (- for stdout)")
	f.Bool("summary", false, "Append an LLM class summary (needs --llm-url)")
	addServiceFlags(cmd)
	addPollFlags(cmd)
	addLLMFlags(cmd)

	_ = cmd.MarkFlagRequired("answer-key")
	_ = cmd.MarkFlagRequired("responses")

	return cmd
}

func resultsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "results",
		Short: "Fetch the current results once and print the report",
		RunE:  runResults,
	}
	addServiceFlags(cmd)
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Fetch the current results once and save them as JSON",
		RunE:  runExport,
	}
	cmd.Flags().StringP("output", "o", "", "Output file or directory (default grading-results-<date>.json, - for stdout)")
	addServiceFlags(cmd)
	return cmd
}

// commandContext prepares logging, localization and a signal-aware context.
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc, *viper.Viper, model.AppConfig, error) {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	cfg := appConfig(v)
	if err := appI18n.Init(cfg.Lang); err != nil {
		return nil, nil, nil, cfg, fmt.Errorf("init i18n: %w", err)
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	return appI18n.ContextWithLang(ctx, cfg.Lang), stop, v, cfg, nil
}

// explain prints the localized description of err and returns err so the
// process exits non-zero.
func explain(ctx context.Context, err error, serviceURL string) error {
	fmt.Fprintln(os.Stderr, appI18n.ErrorMessage(ctx, err, serviceURL))
	return err
}

func openUpload(path string) (model.Upload, io.Closer, error) {
	f, err := os.Open(path)
	if err != nil {
		return model.Upload{}, nil, fmt.Errorf("open %s: %w", path, err)
	}
	return model.Upload{Name: filepath.Base(path), Content: f}, f, nil
}

func runGrade(cmd *cobra.Command, _ []string) error {
	ctx, stop, v, cfg, err := commandContext(cmd)
	if err != nil {
		return err
	}
	defer stop()

	client := grader.New(cfg.ServiceURL, cfg.HTTPTimeout)
	if err := client.Ping(ctx); err != nil {
		return explain(ctx, err, client.BaseURL())
	}

	sess, err := workflow.New(client, workflow.WithPolicy(workflow.PolicyFromConfig(cfg.Poll)))
	if err != nil {
		return err
	}
	defer sess.Close()

	stderr := cmd.ErrOrStderr()
	for _, step := range []struct {
		path   string
		submit func(context.Context, model.Upload) error
	}{
		{v.GetString("answer-key"), sess.SubmitAnswerKey},
		{v.GetString("responses"), sess.SubmitStudentResponses},
	} {
		up, closer, err := openUpload(step.path)
		if err != nil {
			return err
		}
		err = step.submit(ctx, up)
		closer.Close()
		if err != nil {
			return explain(ctx, err, client.BaseURL())
		}
		fmt.Fprintln(stderr, appI18n.StateLabel(ctx, sess.Snapshot().State))
	}

	rs, err := sess.Wait(ctx)
	if err != nil {
		return explain(ctx, err, client.BaseURL())
	}
	snap := sess.Snapshot()
	slog.Info("grading finished", "session", sess.ID(), "students", len(rs.Results), "polls", snap.Attempts)

	if err := report.Write(ctx, cmd.OutOrStdout(), rs, snap.Stats); err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	if out := v.GetString("output"); out != "" {
		if err := saveExport(&rs, out); err != nil {
			return err
		}
	}

	if v.GetBool("summary") {
		return printSummary(ctx, cmd.OutOrStdout(), v, cfg, rs, snap.Stats)
	}
	return nil
}

func printSummary(ctx context.Context, w io.Writer, v *viper.Viper, cfg model.AppConfig, rs model.ResultSet, st *model.Stats) error {
	summarizer, err := newSummarizer(v, cfg.SummaryVariant)
	if err != nil {
		return err
	}
	if summarizer == nil {
		fmt.Fprintln(os.Stderr, appI18n.T(ctx, "ErrSummaryUnavailable"))
		return nil
	}
	if st == nil {
		fmt.Fprintln(os.Stderr, appI18n.T(ctx, "NoData"))
		return nil
	}
	text, err := summarizer.Summarize(ctx, rs, *st)
	if err != nil {
		slog.Error("class summary failed", "error", err)
		return errors.New(appI18n.T(ctx, "ErrSummaryFailed"))
	}
	_, err = fmt.Fprintf(w, "\n%s\n", text)
	return err
}

// fetchOnce reads the service's current result set without polling.
func fetchOnce(ctx context.Context, cfg model.AppConfig) (*model.ResultSet, error) {
	client := grader.New(cfg.ServiceURL, cfg.HTTPTimeout)
	rs, ready, err := client.FetchResults(ctx)
	if err != nil {
		return nil, explain(ctx, err, client.BaseURL())
	}
	if !ready {
		fmt.Fprintln(os.Stderr, appI18n.T(ctx, "ErrNoResults"))
		return nil, nil
	}
	if err := workflow.ValidateResultSet(rs); err != nil {
		return nil, explain(ctx, err, client.BaseURL())
	}
	return &rs, nil
}

func runResults(cmd *cobra.Command, _ []string) error {
	ctx, stop, _, cfg, err := commandContext(cmd)
	if err != nil {
		return err
	}
	defer stop()

	rs, err := fetchOnce(ctx, cfg)
	if err != nil || rs == nil {
		return err
	}
	var stp *model.Stats
	if st, err := stats.Aggregate(rs.Percentages()); err == nil {
		stp = &st
	}
	return report.Write(ctx, cmd.OutOrStdout(), *rs, stp)
}

func runExport(cmd *cobra.Command, _ []string) error {
	ctx, stop, v, cfg, err := commandContext(cmd)
	if err != nil {
		return err
	}
	defer stop()

	rs, err := fetchOnce(ctx, cfg)
	if err != nil || rs == nil {
		return err
	}
	return saveExport(rs, v.GetString("output"))
}

func saveExport(rs *model.ResultSet, out string) error {
	art, ok := export.Results(rs, time.Now())
	if !ok {
		return errors.New("nothing to export")
	}
	path, err := art.Save(out)
	if err != nil {
		return fmt.Errorf("export results: %w", err)
	}
	if path != "-" {
		slog.Info("exported results", "path", path, "students", len(rs.Results))
	}
	return nil
}
