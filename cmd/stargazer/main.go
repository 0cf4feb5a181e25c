package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"stargazer/internal/cmdlog"
	"stargazer/internal/config"
	"stargazer/internal/extract"
	"stargazer/internal/ghclient"
	"stargazer/internal/jobs"
	"stargazer/internal/metrics"
	"stargazer/internal/store/starstore"
	"stargazer/internal/tokens"
	"stargazer/internal/transform"
)

func main() {
	_ = godotenv.Load()
	cmd := ""
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}
	var err error
	switch cmd {
	case "init":
		err = cmdlog.Run("init", cmdInit)
	case "extract":
		err = cmdlog.Run("extract", cmdExtract)
	case "transform":
		err = cmdlog.Run("transform", cmdTransform)
	case "aggregate":
		err = cmdlog.Run("aggregate", cmdAggregate)
	case "run":
		err = cmdlog.Run("run", cmdRun)
	case "report":
		err = cmdlog.Run("report", cmdReport)
	default:
		printHelp()
		return
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func printHelp() {
	fmt.Println("Usage: stargazer <command> [options]")
	fmt.Println("Commands:")
	fmt.Println("  init        Create a config file at ./stargazer.yaml")
	fmt.Println("  extract     Extract and load stargazers (-repo owner/name for one)")
	fmt.Println("  transform   Rebuild staging and mart relations")
	fmt.Println("  aggregate   Recompute aggregate marts")
	fmt.Println("  run         Full daily run: extract all, transform, aggregate")
	fmt.Println("  report      Print per-repo star totals")
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func setup(cfgPath string) (config.Config, *starstore.Store, *extract.Runner, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return cfg, nil, nil, err
	}
	metrics.StartServer(cfg.Metrics.Addr)
	st, err := starstore.Open(cfg.Storage.DBPath)
	if err != nil {
		return cfg, nil, nil, err
	}
	dedicated := make(map[string]string)
	for _, r := range cfg.Repos {
		if r.Token != "" {
			dedicated[r.Name] = r.Token
		}
	}
	pool := tokens.NewPool(cfg.Credentials.Token, dedicated)
	client := ghclient.NewHTTPClient(
		ghclient.WithPerPage(cfg.Extraction.PerPage),
		ghclient.WithRetry(cfg.Extraction.MaxAttempts, time.Duration(cfg.Extraction.BaseBackoffMs)*time.Millisecond),
	)
	runner := extract.NewRunner(client, pool, cfg.Extraction.PerPage, cfg.Extraction.MaxPages)
	return cfg, st, runner, nil
}

func cmdInit() error {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	path := fs.String("path", "./stargazer.yaml", "path to write config")
	_ = fs.Parse(os.Args[2:])
	if err := config.Save(*path, config.Default()); err != nil {
		return err
	}
	abs, _ := filepath.Abs(*path)
	fmt.Println("Config written to:", abs)
	return nil
}

func cmdExtract() error {
	fs := flag.NewFlagSet("extract", flag.ExitOnError)
	cfgPath := fs.String("config", "./stargazer.yaml", "config path")
	repo := fs.String("repo", "", "extract a single repo (owner/name); default all")
	_ = fs.Parse(os.Args[2:])
	cfg, st, runner, err := setup(*cfgPath)
	if err != nil {
		return err
	}
	defer st.Close()
	ctx, cancel := signalContext()
	defer cancel()

	repos := cfg.RepoNames()
	if *repo != "" {
		repos = []string{*repo}
	}
	report := jobs.RunExtractLoad(ctx, st, runner, repos, cfg.Extraction.Workers)
	for _, o := range report.Outcomes {
		if o.Err != nil {
			fmt.Printf("%-30s FAILED: %v\n", o.Repo, o.Err)
		} else {
			fmt.Printf("%-30s %d rows (%d pages, token=%s)\n", o.Repo, o.Loaded, o.Job.PagesFetched, o.Job.Credential)
		}
	}
	if n := report.Failed(); n > 0 {
		return fmt.Errorf("%d of %d repos failed", n, len(repos))
	}
	return nil
}

func cmdTransform() error {
	fs := flag.NewFlagSet("transform", flag.ExitOnError)
	cfgPath := fs.String("config", "./stargazer.yaml", "config path")
	_ = fs.Parse(os.Args[2:])
	_, st, _, err := setup(*cfgPath)
	if err != nil {
		return err
	}
	defer st.Close()
	ctx, cancel := signalContext()
	defer cancel()
	res, err := transform.Run(ctx, st)
	if err != nil {
		return err
	}
	fmt.Printf("staged %d rows (%d rejected) from %d raw\n", res.Staged, res.Rejected, res.RawRows)
	return nil
}

func cmdAggregate() error {
	fs := flag.NewFlagSet("aggregate", flag.ExitOnError)
	cfgPath := fs.String("config", "./stargazer.yaml", "config path")
	_ = fs.Parse(os.Args[2:])
	_, st, _, err := setup(*cfgPath)
	if err != nil {
		return err
	}
	defer st.Close()
	ctx, cancel := signalContext()
	defer cancel()
	return jobs.RunAggregates(ctx, st, time.Now)
}

func cmdRun() error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	cfgPath := fs.String("config", "./stargazer.yaml", "config path")
	_ = fs.Parse(os.Args[2:])
	cfg, st, runner, err := setup(*cfgPath)
	if err != nil {
		return err
	}
	defer st.Close()
	ctx, cancel := signalContext()
	defer cancel()
	report, err := jobs.RunPipeline(ctx, st, runner, cfg.RepoNames(), cfg.Extraction.Workers, time.Now)
	if err != nil {
		return err
	}
	if n := report.Failed(); n > 0 {
		return fmt.Errorf("%d of %d repos failed", n, len(cfg.Repos))
	}
	return nil
}

func cmdReport() error {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	cfgPath := fs.String("config", "./stargazer.yaml", "config path")
	_ = fs.Parse(os.Args[2:])
	_, st, _, err := setup(*cfgPath)
	if err != nil {
		return err
	}
	defer st.Close()
	ctx, cancel := signalContext()
	defer cancel()
	totals, err := st.RepoTotals(ctx)
	if err != nil {
		return err
	}
	for _, t := range totals {
		fmt.Printf("%-30s %d\n", t.Repo, t.Stars)
	}
	return nil
}
