// Package main is the entry point for modmirror.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/CageChen/modmirror/internal/config"
	"github.com/CageChen/modmirror/internal/handler"
	"github.com/CageChen/modmirror/internal/mirror"
	"github.com/CageChen/modmirror/internal/watcher"
)

var version = "dev"

// debounce is how long the source must be quiet before a watched re-run.
const debounce = 500 * time.Millisecond

var (
	cfgFile string
	flagCfg = config.DefaultConfig()
	verbose bool
	debug   bool
	watch   bool
	dryRun  bool
	force   bool
)

var rootCmd = &cobra.Command{
	Use:   "modmirror [destination]",
	Short: "Mirror node_modules without tests, docs and dev dependencies",
	Long: `modmirror copies the node_modules tree of a project to another root,
leaving out entries matched by the global ignore list, entries named in
per-directory .npmignore files, and packages listed in devDependencies.
Symbolic links are copied as the files and directories they point to.`,
	Version:       version,
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runMirror,
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file with the default settings",
	Args:  cobra.NoArgs,
	RunE:  runInit,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve an HTTP API that runs the mirror and reports on it",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&cfgFile, "config", "c", "", "config file (default ./"+config.LocalFileName+", then "+config.GetConfigPath()+")")
	pf.StringVarP(&flagCfg.SourceRoot, "source", "s", flagCfg.SourceRoot, "directory containing the tree to mirror")
	pf.StringVarP(&flagCfg.DestinationRoot, "dest", "d", flagCfg.DestinationRoot, "directory to mirror into")
	pf.StringVar(&flagCfg.DirName, "dir-name", flagCfg.DirName, "name of the mirrored directory under source and destination")
	pf.BoolVarP(&flagCfg.Quiet, "quiet", "q", flagCfg.Quiet, "suppress per-directory progress lines")
	pf.BoolVarP(&verbose, "verbose", "v", false, "print per-directory progress lines (same as --quiet=false)")
	pf.BoolVar(&flagCfg.NoDevDependencies, "no-dev-dependencies", flagCfg.NoDevDependencies, "exclude packages listed in devDependencies")
	pf.StringVar(&flagCfg.PackageDir, "package-dir", flagCfg.PackageDir, "directory holding package.json")
	pf.BoolVar(&flagCfg.UseNpmignore, "use-npmignore", flagCfg.UseNpmignore, "honor per-directory override files")
	pf.StringVar(&flagCfg.IgnoreFile, "ignore-file", flagCfg.IgnoreFile, "name of the per-directory override file")
	pf.BoolVar(&flagCfg.NoIgnoreList, "no-ignore-list", flagCfg.NoIgnoreList, "disable the global ignore list")
	pf.StringArrayVar(&flagCfg.Ignore, "ignore", nil, "global ignore pattern, repeatable; a trailing / marks a directory pattern")
	pf.StringVar(&flagCfg.Matcher, "matcher", flagCfg.Matcher, "pattern engine: glob or gitignore")
	pf.BoolVar(&flagCfg.LogIgnored, "log-ignored", flagCfg.LogIgnored, "print excluded entries")
	pf.BoolVar(&flagCfg.LogToFile, "log-to-file", flagCfg.LogToFile, "append decisions to dated log files")
	pf.StringVar(&flagCfg.LogDir, "log-dir", flagCfg.LogDir, "directory for log files")
	pf.StringVar(&flagCfg.GitRef, "git-ref", flagCfg.GitRef, "read the source from this git ref of the repository at --source")
	pf.BoolVar(&debug, "debug", false, "enable debug diagnostics")

	rootCmd.Flags().BoolVarP(&watch, "watch", "w", false, "re-run whenever the source changes")
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "print decisions without copying")

	serveCmd.Flags().StringVar(&flagCfg.Listen, "listen", flagCfg.Listen, "address to listen on")
	serveCmd.Flags().BoolVarP(&watch, "watch", "w", false, "re-run whenever the source changes")

	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config file")

	rootCmd.AddCommand(initCmd, serveCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "modmirror:", err)
		os.Exit(1)
	}
}

func newLogger() (*zap.Logger, error) {
	level := zapcore.WarnLevel
	if debug {
		level = zapcore.DebugLevel
	}
	zcfg := zap.NewDevelopmentConfig()
	zcfg.Level = zap.NewAtomicLevelAt(level)
	zcfg.DisableStacktrace = true
	zcfg.OutputPaths = []string{"stderr"}
	return zcfg.Build()
}

// loadConfig layers defaults, the config file and explicitly set flags.
func loadConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	applyFlags(cmd.Flags(), cfg)
	if len(args) > 0 {
		cfg.DestinationRoot = args[0]
	}
	return cfg, nil
}

func applyFlags(fs *pflag.FlagSet, cfg *config.Config) {
	set := func(name string, apply func()) {
		if fs.Changed(name) {
			apply()
		}
	}
	set("source", func() { cfg.SourceRoot = flagCfg.SourceRoot })
	set("dest", func() { cfg.DestinationRoot = flagCfg.DestinationRoot })
	set("dir-name", func() { cfg.DirName = flagCfg.DirName })
	set("quiet", func() { cfg.Quiet = flagCfg.Quiet })
	set("verbose", func() { cfg.Quiet = !verbose })
	set("no-dev-dependencies", func() { cfg.NoDevDependencies = flagCfg.NoDevDependencies })
	set("package-dir", func() { cfg.PackageDir = flagCfg.PackageDir })
	set("use-npmignore", func() { cfg.UseNpmignore = flagCfg.UseNpmignore })
	set("ignore-file", func() { cfg.IgnoreFile = flagCfg.IgnoreFile })
	set("no-ignore-list", func() { cfg.NoIgnoreList = flagCfg.NoIgnoreList })
	set("ignore", func() { cfg.Ignore = flagCfg.Ignore })
	set("matcher", func() { cfg.Matcher = flagCfg.Matcher })
	set("log-ignored", func() { cfg.LogIgnored = flagCfg.LogIgnored })
	set("log-to-file", func() { cfg.LogToFile = flagCfg.LogToFile })
	set("log-dir", func() { cfg.LogDir = flagCfg.LogDir })
	set("git-ref", func() { cfg.GitRef = flagCfg.GitRef })
	set("listen", func() { cfg.Listen = flagCfg.Listen })
}

func runMirror(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	m, err := mirror.New(mirror.Options{Config: cfg, Logger: logger, Out: cmd.OutOrStdout()})
	if err != nil {
		return err
	}

	if dryRun {
		plan, err := m.Plan()
		for _, e := range plan {
			line := e.Disposition + "\t" + e.Path
			if e.Reason != "" {
				line += "\t(" + e.Reason + ")"
			}
			fmt.Fprintln(cmd.OutOrStdout(), line)
		}
		return err
	}

	if _, err := m.Run(); err != nil && !watch {
		return err
	}
	if !watch {
		return nil
	}
	return watchSource(cmd.Context(), cfg, m, logger, nil)
}

// watchSource re-runs m after each quiet period following a source change,
// until ctx is done. notify, when set, receives every batch first.
func watchSource(ctx context.Context, cfg *config.Config, m *mirror.Mirror, logger *zap.Logger, notify func([]watcher.Event)) error {
	w, err := watcher.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	deb := watcher.NewDebouncer(debounce, func(events []watcher.Event) {
		if notify != nil {
			notify(events)
		}
		logger.Info("source changed", zap.String("op", "watch"), zap.Int("events", len(events)))
		if _, err := m.Run(); err != nil {
			logger.Warn("re-run failed", zap.String("op", "watch"), zap.Error(err))
		}
	})
	w.OnChange(deb.Add)
	if err := w.Start(); err != nil {
		_ = w.Stop()
		return fmt.Errorf("start watcher: %w", err)
	}
	logger.Info("watching", zap.String("op", "watch"), zap.String("path", cfg.SourcePath()))

	<-ctx.Done()
	deb.Stop()
	return w.Stop()
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	m, err := mirror.New(mirror.Options{Config: cfg, Logger: logger, Out: cmd.OutOrStdout()})
	if err != nil {
		return err
	}
	ws := handler.NewWSHandler(logger)
	m.OnStart(ws.OnRunStarted)
	m.OnComplete(ws.OnRunCompleted)

	ctx := cmd.Context()
	if watch {
		go func() {
			if err := watchSource(ctx, cfg, m, logger, ws.OnSourceChange); err != nil {
				logger.Warn("watcher stopped", zap.String("op", "watch"), zap.Error(err))
			}
		}()
	}

	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           handler.NewRouter(m, ws, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	fmt.Fprintf(cmd.OutOrStdout(), "[modmirror] serving on %s\n", cfg.Listen)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func runInit(cmd *cobra.Command, _ []string) error {
	cfg := config.DefaultConfig()
	applyFlags(cmd.Flags(), cfg)

	path := cfgFile
	if path == "" {
		path = config.LocalFileName
	}
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists, use --force to overwrite", path)
	}
	cfg.SetConfigFilePath(path)
	if err := cfg.Save(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "[modmirror] wrote %s\n", path)
	return nil
}
