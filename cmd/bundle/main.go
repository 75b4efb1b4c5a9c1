package main

import (
	"fmt"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/gophersatwork/bundle"
)

type projectConfig struct {
	Root    string   `yaml:"root"`
	Version string   `yaml:"version"`
	Paths   []string `yaml:"paths"`
	Targets []target `yaml:"targets"`
}

type target struct {
	Source string `yaml:"source"`
	Output string `yaml:"output"`
}

var (
	configPath string
	cacheDir   string
	compress   bool
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "bundle",
	Short: "bundle builds concatenated assets from requirement graphs",
	Long: `bundle concatenates each source file's processed output in dependency
order and caches the results, so unchanged inputs are never reprocessed.

Requirements are declared with comment directives:

    //= require vendor/jquery.js
    //= require_self
    //= depend_on config/build.json`,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "bundle.yml", "project configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	buildCmd := &cobra.Command{
		Use:   "build [sources...]",
		Short: "Build configured targets",
		Long: `Builds the targets named on the command line, or every target in the
configuration when none are given. Builds go through the persistent cache;
an unchanged target is written without reprocessing.`,
		RunE: runBuild,
	}
	buildCmd.Flags().StringVar(&cacheDir, "cache-dir", "", "directory for the persistent build cache (in-memory when empty)")
	buildCmd.Flags().BoolVar(&compress, "compress", false, "gzip output files")
	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, args []string) error {
	logger := zap.NewNop()
	if verbose {
		l, err := zap.NewDevelopment()
		if err != nil {
			return fmt.Errorf("initializing logger: %w", err)
		}
		logger = l
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	targets, err := selectTargets(cfg, args)
	if err != nil {
		return err
	}

	env, err := bundle.NewEnvironment(bundle.Config{
		Root:        cfg.Root,
		SearchPaths: cfg.Paths,
		Version:     cfg.Version,
	}, directiveEvaluator{}, bundle.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("creating environment: %w", err)
	}

	var store bundle.Store
	if cacheDir != "" {
		opts := badger.DefaultOptions(cacheDir)
		opts.Logger = nil
		db, err := badger.Open(opts)
		if err != nil {
			return fmt.Errorf("opening cache at %s: %w", cacheDir, err)
		}
		defer db.Close()
		store = bundle.NewBadgerStore(db, "bundle")
	} else {
		store = bundle.NewMemoryStore()
	}

	cached := bundle.NewCached(env, store)
	for _, t := range targets {
		rec, err := cached.BuildHash(t.Source, bundle.BuildOptions{Bundle: true})
		if err != nil {
			return fmt.Errorf("building %s: %w", t.Source, err)
		}
		if rec == nil {
			return fmt.Errorf("building %s: source not found", t.Source)
		}

		b, err := rec.Bundle(env)
		if err != nil {
			return fmt.Errorf("restoring %s: %w", t.Source, err)
		}
		if err := b.WriteTo(t.Output, bundle.WriteOptions{Compress: compress}); err != nil {
			return fmt.Errorf("writing %s: %w", t.Output, err)
		}
		fmt.Printf("wrote %s (%d bytes, %.12s)\n", t.Output, rec.Length, rec.Digest)
	}
	return nil
}

func loadConfig(path string) (*projectConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	var cfg projectConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if cfg.Root == "" {
		cfg.Root = "."
	}
	return &cfg, nil
}

func selectTargets(cfg *projectConfig, args []string) ([]target, error) {
	if len(args) == 0 {
		if len(cfg.Targets) == 0 {
			return nil, fmt.Errorf("no targets configured")
		}
		return cfg.Targets, nil
	}

	bysrc := make(map[string]target, len(cfg.Targets))
	for _, t := range cfg.Targets {
		bysrc[t.Source] = t
	}
	targets := make([]target, 0, len(args))
	for _, name := range args {
		t, ok := bysrc[name]
		if !ok {
			return nil, fmt.Errorf("unknown target: %s", name)
		}
		targets = append(targets, t)
	}
	return targets, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
