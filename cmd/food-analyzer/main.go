package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	foodanalyzer "github.com/luckcal/food-analyzer"
	"github.com/luckcal/food-analyzer/internal/config"
	"github.com/luckcal/food-analyzer/internal/logging"
	"github.com/luckcal/food-analyzer/internal/utils"
	"github.com/luckcal/food-analyzer/pkg/feedback"
	"github.com/luckcal/food-analyzer/pkg/types"
)

type options struct {
	in, configPath       string
	sex, age, meal, goal string
	backend, url, model  string
	timeout              time.Duration
	saveDir              string
	rating, reason       string
	historyPath          string
	recent               int
	debug                bool
}

func main() {
	var opts options

	flag.StringVar(&opts.in, "in", "", "input photo path, URL or directory")
	flag.StringVar(&opts.sex, "sex", "", "male|female|undisclosed")
	flag.StringVar(&opts.age, "age", "", "infant|child|teen|adult")
	flag.StringVar(&opts.meal, "meal", "", "breakfast|lunch|dinner|late-night")
	flag.StringVar(&opts.goal, "goal", "", "diet|maintain|bulk")
	flag.StringVar(&opts.configPath, "config", config.GetConfigPath(), "config file")
	flag.StringVar(&opts.backend, "backend", "", "backend to use: http, ollama or llamacpp")
	flag.StringVar(&opts.url, "url", "", "server URL of the selected backend")
	flag.StringVar(&opts.model, "model", "", "vision model for the ollama and llamacpp backends")
	flag.DurationVar(&opts.timeout, "timeout", 0, "analysis timeout (default 35s)")
	flag.StringVar(&opts.saveDir, "save", "", "directory to write the JPEG payload sent to the backend")
	flag.StringVar(&opts.rating, "feedback", "", "rate the result: yes|no")
	flag.StringVar(&opts.reason, "reason", "", "reason for -feedback no: misidentified-food|bad-nutrition-values|poor-advice|other")
	flag.StringVar(&opts.historyPath, "history", "", "SQLite journal of attempts and feedback")
	flag.IntVar(&opts.recent, "recent", 0, "print the N most recent journaled attempts and exit")
	flag.BoolVar(&opts.debug, "debug", false, "verbose logging")

	flag.Parse()

	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if err := run(context.Background(), opts, set, os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			log.Fatalf("usage: %s -in photo.jpg|URL|dir [-sex female] [-age adult] [-meal lunch] [-goal diet] [-backend http|ollama|llamacpp] [-url server_url] [-feedback yes|no] [-reason poor-advice]", filepath.Base(os.Args[0]))
		}
		log.Fatal(err)
	}
}

var (
	errUsage       = errors.New("missing -in")
	errBatchFailed = errors.New("some photos could not be analyzed")
)

// run executes one CLI invocation. Every exit path returns through here so
// the session and its journal are closed before the process ends.
func run(ctx context.Context, opts options, set map[string]bool, w io.Writer) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	if err := applyFlags(cfg, opts, set); err != nil {
		return err
	}

	logger, err := logging.NewLogger(cfg.Log.Debug)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync()

	attrs, err := parseAttributes(opts)
	if err != nil {
		return err
	}

	session, err := foodanalyzer.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	defer session.Close()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if opts.recent > 0 {
		if err := printHistory(ctx, w, session, opts.recent); err != nil {
			return fmt.Errorf("failed to read history: %w", err)
		}
		return nil
	}

	if opts.in == "" {
		return errUsage
	}

	if err := session.SetAttributes(attrs); err != nil {
		return err
	}

	inputs := []string{opts.in}
	if utils.DirExists(opts.in) {
		inputs, err = utils.ListPhotos(opts.in)
		if err != nil {
			return fmt.Errorf("failed to list photos in %s: %w", opts.in, err)
		}
		if len(inputs) == 0 {
			return fmt.Errorf("no photos found in %s", opts.in)
		}
	} else if !strings.Contains(opts.in, "://") && !utils.FileExists(opts.in) {
		return fmt.Errorf("input not found: %s", opts.in)
	}

	failed := 0
	for _, in := range inputs {
		if ctx.Err() != nil {
			break
		}
		if err := analyzeOne(ctx, w, session, in, opts); err != nil {
			logger.Error("analysis aborted", zap.String("input", in), zap.Error(err))
			failed++
		}
		if err := session.Reset(); err != nil {
			logger.Warn("reset failed", zap.Error(err))
		}
	}
	if failed > 0 {
		return fmt.Errorf("%w: %d of %d", errBatchFailed, failed, len(inputs))
	}
	return nil
}

func analyzeOne(ctx context.Context, w io.Writer, session *foodanalyzer.Session, in string, opts options) error {
	if err := session.LoadImage(in); err != nil {
		return err
	}

	result, err := session.Analyze(ctx)
	if err != nil {
		return err
	}

	payload := session.Snapshot().Payload
	render(w, in, payload, result)

	if opts.saveDir != "" && payload != nil {
		if err := utils.EnsureDir(opts.saveDir); err != nil {
			return err
		}
		out := utils.PayloadFilename(in, opts.saveDir)
		if err := session.SavePayload(out); err != nil {
			return err
		}
		fmt.Fprintf(w, "wrote %s\n", out)
	}

	return applyFeedback(ctx, session, opts)
}

func applyFeedback(ctx context.Context, session *foodanalyzer.Session, opts options) error {
	switch opts.rating {
	case "":
		return nil
	case "yes":
		return session.Like(ctx)
	case "no":
		if err := session.Dislike(ctx); err != nil {
			return err
		}
		if opts.reason == "" {
			return nil
		}
		reason, err := feedback.ParseReason(opts.reason)
		if err != nil {
			return err
		}
		return session.Explain(ctx, reason)
	}
	return fmt.Errorf("unknown -feedback %q (use yes or no)", opts.rating)
}

// applyFlags overrides config values with the flags named in set
func applyFlags(cfg *config.Config, opts options, set map[string]bool) error {
	var url string
	for name := range set {
		switch name {
		case "backend":
			cfg.Client.Backend = opts.backend
		case "url":
			url = opts.url
		case "model":
			cfg.Client.Model = opts.model
		case "timeout":
			cfg.Client.TimeoutSeconds = int(opts.timeout.Round(time.Second) / time.Second)
		case "history":
			cfg.History.Path = opts.historyPath
		case "debug":
			cfg.Log.Debug = opts.debug
		}
	}
	// -url applies to whichever backend ends up selected
	if url != "" {
		switch cfg.Client.Backend {
		case config.BackendOllama:
			cfg.Client.OllamaURL = url
		case config.BackendLlamaCpp:
			cfg.Client.LlamaCppURL = url
		default:
			cfg.Client.Endpoint = url
		}
	}
	if opts.reason != "" && opts.rating != "no" {
		return errors.New("-reason requires -feedback no")
	}
	return cfg.Validate()
}

func parseAttributes(opts options) (types.Attributes, error) {
	attrs := types.DefaultAttributes()
	var err error
	if opts.sex != "" {
		if attrs.Sex, err = types.ParseSex(opts.sex); err != nil {
			return attrs, err
		}
	}
	if opts.age != "" {
		if attrs.AgeGroup, err = types.ParseAgeGroup(opts.age); err != nil {
			return attrs, err
		}
	}
	if opts.meal != "" {
		if attrs.MealTime, err = types.ParseMealTime(opts.meal); err != nil {
			return attrs, err
		}
	}
	if opts.goal != "" {
		if attrs.Goal, err = types.ParseGoal(opts.goal); err != nil {
			return attrs, err
		}
	}
	return attrs, nil
}

func printHistory(ctx context.Context, w io.Writer, session *foodanalyzer.Session, limit int) error {
	entries, err := session.History(ctx, limit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(w, "no journaled attempts (set -history or history.path)")
		return nil
	}
	for _, e := range entries {
		status := e.Food
		if !e.Succeeded {
			status = "failed: " + string(e.Reason)
		}
		fmt.Fprintf(w, "%s  %-20s %-28s %3d%%  %s\n",
			e.CreatedAt.Format("2006-01-02 15:04"), e.ImageName, status, e.Confidence, e.Feedback)
	}
	return nil
}
