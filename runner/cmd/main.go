// Command gitsync keeps local working copies of remote git
// repositories in sync. It loads a YAML manifest, resolves
// named secrets, optionally verifies repository access
// through the hosting provider APIs, and pulls each
// repository on its configured cadence.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/byte4ever/gitsync/config"
	"github.com/byte4ever/gitsync/provider"
	"github.com/byte4ever/gitsync/runner"
	"github.com/byte4ever/gitsync/secrets"
	"github.com/byte4ever/gitsync/steps"
	"github.com/byte4ever/gitsync/storage"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	const errCtx = "running gitsync"

	configPath := flag.String(
		"config", "gitsync.yaml",
		"Path of the YAML manifest",
	)
	basePath := flag.String(
		"base_path", "",
		"Override the manifest base path",
	)
	once := flag.Bool(
		"once", false,
		"Sync every repository once and exit",
	)
	preflight := flag.Bool(
		"preflight", false,
		"Verify repository access through provider APIs "+
			"before syncing",
	)
	printSteps := flag.Bool(
		"print_steps", false,
		"Print pull steps as JSON and exit",
	)
	verbose := flag.Bool(
		"verbose", false,
		"Enable debug logging",
	)

	flag.Parse()

	if *verbose {
		slog.SetLogLoggerLevel(slog.LevelDebug)
	}

	file, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	if *basePath != "" {
		file.BasePath = *basePath
	}

	store, err := file.SecretResolver()
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	storages, err := file.Storages(store)
	if err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	if *printSteps {
		if err := printPullSteps(storages); err != nil {
			return fmt.Errorf("%s: %w", errCtx, err)
		}

		return nil
	}

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt, syscall.SIGTERM,
	)
	defer stop()

	if *preflight {
		if err := runPreflight(
			ctx, file, store,
		); err != nil {
			return fmt.Errorf("%s: %w", errCtx, err)
		}
	}

	rn := runner.New(runner.Config{
		BasePath: file.BasePath,
	})

	for _, st := range storages {
		rn.Add(st)
	}

	if *once {
		if err := rn.SyncOnce(ctx); err != nil {
			return fmt.Errorf("%s: %w", errCtx, err)
		}

		return nil
	}

	if err := rn.Run(ctx); err != nil {
		return fmt.Errorf("%s: %w", errCtx, err)
	}

	return nil
}

// printPullSteps writes each storage's pull step as one
// JSON document per line.
func printPullSteps(
	storages []storage.RunnerStorage,
) error {
	const errCtx = "printing pull steps"

	for _, st := range storages {
		step, err := st.ToPullStep()
		if err != nil {
			return fmt.Errorf(
				"%s: %s: %w",
				errCtx, st.Destination(), err,
			)
		}

		raw, err := steps.Encode(step)
		if err != nil {
			return fmt.Errorf(
				"%s: %s: %w",
				errCtx, st.Destination(), err,
			)
		}

		fmt.Println(string(raw))
	}

	return nil
}

// runPreflight verifies access to every repository whose
// host has a provider API checker. Unknown hosts are
// skipped.
func runPreflight(
	ctx context.Context,
	file *config.File,
	store secrets.Store,
) error {
	const errCtx = "running preflight"

	for _, repo := range file.Repositories {
		token, err := repoToken(repo, store)
		if err != nil {
			return fmt.Errorf(
				"%s: %s: %w", errCtx, repo.URL, err,
			)
		}

		ck, err := provider.ForURL(repo.URL, token)
		if err != nil {
			return fmt.Errorf(
				"%s: %s: %w", errCtx, repo.URL, err,
			)
		}

		if ck == nil {
			slog.Debug(
				"no preflight checker for host",
				"url", repo.URL,
			)

			continue
		}

		if err := ck.Check(ctx); err != nil {
			return fmt.Errorf(
				"%s: %s: %w", errCtx, repo.URL, err,
			)
		}

		slog.Info("preflight passed", "url", repo.URL)
	}

	return nil
}

// repoToken resolves the access token configured for one
// repository entry, or empty when none is configured.
func repoToken(
	repo config.Repository,
	store secrets.Store,
) (string, error) {
	creds := repo.Credentials
	if creds == nil {
		return "", nil
	}

	name := creds.AccessTokenSecret
	if name == "" {
		name = creds.Secret
	}

	if name == "" {
		return creds.AccessToken, nil
	}

	sec, err := store.Secret(name)
	if err != nil {
		return "", err
	}

	return sec.Get()
}
