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

	"media-upload-go/internal/compressor"
	"media-upload-go/internal/config"
	"media-upload-go/internal/inspect"
	"media-upload-go/internal/logger"
	"media-upload-go/internal/repository/sqlite"
	"media-upload-go/internal/statistics"
	"media-upload-go/internal/storage"
	"media-upload-go/internal/uploader"
	"media-upload-go/internal/watcher"
	"media-upload-go/internal/web"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	cfgFile   string
	verbose   bool
	quiet     bool
	category  string
	maxWidth  int
	maxHeight int
	workers   int
	port      int
)

// rootCmd is the base command for the CLI.
var rootCmd = &cobra.Command{
	Use:   "media-upload",
	Short: "Compress uploaded images before they are stored",
	Long: `media-upload resizes and re-encodes images so that stored uploads stay small.

Images are fitted inside a bounding box (500x500 for avatars, 1920x1920
otherwise), never upscaled, and re-encoded as JPEG or WebP at quality 80.
The original file is replaced only after the new one is safely written.`,
	SilenceUsage: true,
}

var compressCmd = &cobra.Command{
	Use:   "compress [files...]",
	Short: "Compress image files in place",
	Long: `Compresses the given files concurrently. A file that cannot be compressed
is left untouched and reported; the others are still processed.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCompress(args)
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP upload server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Compress images dropped into the inbox directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWatch()
	},
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <file>",
	Short: "Show image details and what compression would do",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInspect(args[0])
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration as YAML",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		out, err := cfg.YAML()
		if err != nil {
			return err
		}
		fmt.Print(string(out))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "enable verbose logging")
	rootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "suppress non-error output")

	compressCmd.Flags().StringVar(&category, "category", "generic", "upload category: avatar, post-image, event-image, generic")
	compressCmd.Flags().IntVar(&maxWidth, "max-width", 0, "override the bounding box width")
	compressCmd.Flags().IntVar(&maxHeight, "max-height", 0, "override the bounding box height")
	compressCmd.Flags().IntVar(&workers, "workers", 0, "number of concurrent workers (default: number of CPUs)")

	inspectCmd.Flags().StringVar(&category, "category", "generic", "category to plan compression for")

	serveCmd.Flags().IntVar(&port, "port", 0, "port to run the server on (default from config)")

	rootCmd.AddCommand(compressCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(configCmd)
}

// runCompress compresses files given on the command line.
func runCompress(paths []string) error {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if workers > 0 {
		cfg.Compression.Workers = workers
	}

	cat, err := compressor.ParseCategory(category)
	if err != nil {
		return err
	}
	opts := cfg.CompressionOptions(cat)
	if maxWidth > 0 {
		opts.Bounds.MaxWidth = maxWidth
	}
	if maxHeight > 0 {
		opts.Bounds.MaxHeight = maxHeight
	}

	log := setupLogger(cfg)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	results := newCompressor(cfg, log).CompressBatch(ctx, paths, opts)

	if !quiet {
		fmt.Print(renderResults(results))
	}

	summary := compressor.Summarize(results)
	if summary.Failed == summary.Files {
		return fmt.Errorf("all %d file(s) failed to compress", summary.Files)
	}
	return nil
}

// runServe starts the upload server and handles graceful shutdown.
func runServe() error {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if port <= 0 {
		port = cfg.Server.Port
	}

	log := setupLogger(cfg)

	layout, err := storage.NewLayout(cfg.Upload.RootDir, cfg.Upload.URLPrefix, cfg.Upload.Directories)
	if err != nil {
		return err
	}
	if err := layout.Init(); err != nil {
		return fmt.Errorf("failed to create upload directories: %w", err)
	}

	db, err := sqlite.NewDatabase(cfg.Database.DataDir)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	stats := statistics.NewStatistics()
	up := uploader.NewUploader(cfg, log, stats, layout, newCompressor(cfg, log), db.MediaRepo)
	server := web.NewServer(cfg, log, up, db.MediaRepo, layout)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		if err := server.Start(port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	if !quiet {
		fmt.Println(successStyle.Render("Upload server started"))
		fmt.Println(mutedStyle.Render(fmt.Sprintf("Listening on :%d, storing under %s", port, layout.Root())))
	}

	select {
	case err := <-errChan:
		return fmt.Errorf("server failed: %w", err)
	case <-sigChan:
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Stop(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	if !quiet {
		fmt.Println("\n" + stats.GetSummary())
	}
	return nil
}

// runWatch compresses files arriving in the inbox until interrupted.
func runWatch() error {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := setupLogger(cfg)
	stats := statistics.NewStatistics()
	w, err := watcher.NewWatcher(cfg, newCompressor(cfg, log), log, stats)
	if err != nil {
		return err
	}
	if !quiet {
		w.OnBatch(func(results []compressor.CompressionResult) {
			fmt.Print(renderResults(results))
		})
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := w.Run(ctx); err != nil {
		return err
	}
	if !quiet {
		fmt.Println("\n" + stats.GetSummary())
	}
	return nil
}

// runInspect prints probe details, the compression plan and metadata.
func runInspect(path string) error {
	if !fileExists(path) {
		return fmt.Errorf("file does not exist: %s", path)
	}
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cat, err := compressor.ParseCategory(category)
	if err != nil {
		return err
	}

	report, err := inspect.NewInspector(setupLogger(cfg)).Inspect(path, cfg.CompressionOptions(cat))
	if err != nil && !errors.Is(err, inspect.ErrExiftoolUnavailable) {
		return err
	}
	fmt.Print(renderReport(report))
	if err != nil {
		fmt.Println(mutedStyle.Render("exiftool not found; install it for the full metadata dump"))
	}
	return nil
}

func newCompressor(cfg *config.Config, log *logrus.Logger) *compressor.DefaultCompressor {
	return compressor.NewDefaultCompressor(log,
		compressor.WithEncoder(compressor.NewDefaultEncoder(cfg.Compression.JPEGQuality, cfg.Compression.WebPQuality)),
		compressor.WithWorkers(cfg.Compression.Workers),
	)
}

// setupLogger configures and returns a logger.
func setupLogger(cfg *config.Config) *logrus.Logger {
	loggerCfg := logger.LoggerConfig{
		Level:      cfg.Logging.Level,
		FilePath:   cfg.Logging.FilePath,
		MaxSize:    cfg.Logging.MaxSize,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAge:     cfg.Logging.MaxAge,
		Compress:   cfg.Logging.Compress,
		Console:    verbose,
		Service:    "media-upload",
	}

	if verbose {
		loggerCfg.Level = "debug"
	}
	if quiet {
		loggerCfg.Level = "error"
	}

	log, err := logger.NewLogger(loggerCfg)
	if err != nil {
		log = logrus.New()
		log.SetLevel(logrus.InfoLevel)
	}

	return log
}

// fileExists returns true if the given path exists and is a file.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
