// Package cmd implements the chapters command line.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/JakeFAU/chapter-crawler/internal/app"
	"github.com/JakeFAU/chapter-crawler/internal/config"
	"github.com/JakeFAU/chapter-crawler/internal/crawler"
	"github.com/JakeFAU/chapter-crawler/internal/discovery"
	"github.com/JakeFAU/chapter-crawler/internal/logging"
	"github.com/JakeFAU/chapter-crawler/internal/video"
)

const shutdownTimeout = 15 * time.Second

// App is what the commands need from the application. Tests swap in a fake.
type App interface {
	DownloadBook(ctx context.Context, bookID string) (crawler.RunResult, crawler.RunRecord, error)
	DiscoverBooks(ctx context.Context, pages discovery.PageRange) ([]string, string, error)
	VideoInfo(ctx context.Context, req video.Request) ([]byte, error)
	ExtractPage(body []byte) (string, error)
	ServeOps(ctx context.Context) error
	Close(ctx context.Context) error
}

// newApp is the application factory.
var newApp = func(ctx context.Context, cfg config.Config, logger *zap.Logger) (App, error) {
	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return appAdapter{a}, nil
}

// appAdapter narrows VideoInfo's json.RawMessage to plain bytes.
type appAdapter struct {
	*app.App
}

func (a appAdapter) VideoInfo(ctx context.Context, req video.Request) ([]byte, error) {
	return a.App.VideoInfo(ctx, req)
}

// cli carries state between the persistent hooks and the subcommands.
type cli struct {
	v       *viper.Viper
	cfgFile string
	cfg     config.Config
	logger  *zap.Logger
	app     App

	stopOps context.CancelFunc
	opsDone chan struct{}
}

func newCLI() *cli {
	return &cli{v: viper.New(), logger: zap.NewNop()}
}

func newRootCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chapters",
		Short: "Download serialized books chapter by chapter.",
		Long: `chapters walks a book's catalog, fetches every chapter page in order with
bounded retries and periodic cooldowns, and writes the cleaned text to one file
per book. It can also discover book IDs from listing pages.`,
		SilenceUsage:      true,
		PersistentPreRunE: c.setup,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&c.cfgFile, "config", "", "config file (default is ./chapters.yaml, $HOME/.chapters or /etc/chapters)")
	flags.String("base-url", "", "site base URL")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("metrics-addr", "", "serve /metrics, /healthz and /v1/progress on this address")
	flags.String("output", "", "output provider: local, gcs or memory")
	flags.String("output-dir", "", "directory for the local output provider")
	c.bind("site.base_url", flags.Lookup("base-url"))
	c.bind("logging.level", flags.Lookup("log-level"))
	c.bind("server.metrics_addr", flags.Lookup("metrics-addr"))
	c.bind("output.provider", flags.Lookup("output"))
	c.bind("output.dir", flags.Lookup("output-dir"))

	cmd.AddCommand(
		newChaptersCmd(c),
		newBooksCmd(c),
		newVideoCmd(c),
		newExtractCmd(c),
	)
	return cmd
}

func (c *cli) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadWith(c.v, c.cfgFile)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	zap.ReplaceGlobals(logger)
	c.cfg = cfg
	c.logger = logger

	a, err := newApp(cmd.Context(), cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize application services: %w", err)
	}
	c.app = a

	opsCtx, stop := context.WithCancel(cmd.Context())
	c.stopOps = stop
	c.opsDone = make(chan struct{})
	go func() {
		defer close(c.opsDone)
		if err := a.ServeOps(opsCtx); err != nil {
			logger.Error("ops server error", zap.Error(err))
		}
	}()
	return nil
}

// shutdown stops the ops server and closes the app. It runs whether or not
// the command succeeded.
func (c *cli) shutdown() {
	if c.stopOps != nil {
		c.stopOps()
		<-c.opsDone
	}
	if c.app != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := c.app.Close(ctx); err != nil {
			c.logger.Warn("close failed", zap.Error(err))
		}
	}
	_ = c.logger.Sync()
}

func (c *cli) bind(key string, flag *pflag.Flag) {
	if err := c.v.BindPFlag(key, flag); err != nil {
		panic(fmt.Sprintf("bind flag %s: %v", key, err))
	}
}

func execute(ctx context.Context, args []string) error {
	c := newCLI()
	defer c.shutdown()

	cmd := newRootCmd(c)
	cmd.SetArgs(args)
	return cmd.ExecuteContext(ctx)
}

// Execute runs the CLI until it finishes or the process is interrupted.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := execute(ctx, os.Args[1:])
	stop()
	if err != nil {
		if errors.Is(err, context.Canceled) {
			os.Exit(130)
		}
		os.Exit(1)
	}
}
