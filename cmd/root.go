package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/brensch/gdcmatrix/internal/config"
	"github.com/brensch/gdcmatrix/internal/db"

	_ "github.com/marcboeker/go-duckdb" // DuckDB driver
	"github.com/spf13/cobra"
)

var (
	// Flags bound in init(). Values set on the command line override the
	// config file and environment.
	cfgFile   string
	outputDir string
	dbPath    string
	workers   int
	sites     []string
	logFormat string
	logLevel  string
	logOutput string

	// Global instances populated in PersistentPreRunE.
	rootLogger *slog.Logger
	dbConn     *sql.DB
	appConfig  config.Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "gdcmatrix",
	Short: "Assemble cohort gene expression matrices from GDC RNA-seq files.",
	Long: `gdcmatrix downloads open-access STAR gene expression quantification
files from the GDC for each configured primary site, splits samples into
tumor and normal groups, and assembles per-group expression matrices
(tpm, fpkm, fpkm_uq) as CSV and Parquet. A DuckDB database records a
per-sample event log for diagnostics.

The primary command is 'run'. Other commands inspect generated matrices,
re-export CSVs as Parquet, or view the event log.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		appConfig, err = config.Load(cfgFile)
		if err != nil {
			return err
		}

		// Command-line flags win over file and environment.
		if cmd.Flags().Changed("output-dir") {
			appConfig.OutputDir = outputDir
		}
		if cmd.Flags().Changed("db-path") {
			appConfig.DbPath = dbPath
		}
		if cmd.Flags().Changed("workers") {
			appConfig.Workers = workers
		}
		if cmd.Flags().Changed("site") {
			appConfig.Sites = sites
		}
		if cmd.Flags().Changed("log-format") {
			appConfig.LogFormat = logFormat
		}
		if cmd.Flags().Changed("log-level") {
			appConfig.LogLevel = logLevel
		}
		if cmd.Flags().Changed("log-output") {
			appConfig.LogOutput = logOutput
		}
		if err := appConfig.Validate(); err != nil {
			return err
		}

		rootLogger, err = newLogger(appConfig)
		if err != nil {
			return err
		}
		slog.SetDefault(rootLogger)
		rootLogger.Info("Logger initialized",
			"level", appConfig.LogLevel, "format", appConfig.LogFormat, "output", appConfig.LogOutput)

		if err := os.MkdirAll(appConfig.OutputDir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory %s: %w", appConfig.OutputDir, err)
		}
		if appConfig.DbPath != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(appConfig.DbPath), 0o755); err != nil {
				return fmt.Errorf("failed to create database directory: %w", err)
			}
		}

		rootLogger.Info("Initializing DuckDB connection", "path", appConfig.DbPath)
		dbConn, err = sql.Open("duckdb", appConfig.DbPath)
		if err != nil {
			return fmt.Errorf("failed to open duckdb database (%s): %w", appConfig.DbPath, err)
		}
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err = dbConn.PingContext(pingCtx); err != nil {
			dbConn.Close()
			return fmt.Errorf("failed to ping duckdb database (%s): %w", appConfig.DbPath, err)
		}

		if err := db.InitializeSchema(dbConn); err != nil {
			dbConn.Close()
			return fmt.Errorf("failed to initialize database schema: %w", err)
		}
		rootLogger.Debug("Database schema initialized.")
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if dbConn != nil {
			if err := dbConn.Close(); err != nil {
				rootLogger.Error("Failed to close DuckDB connection cleanly", "error", err)
			}
		}
		return nil
	},
}

func newLogger(cfg config.Config) (*slog.Logger, error) {
	var level slog.Level
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var logWriter io.Writer = os.Stderr
	switch strings.ToLower(cfg.LogOutput) {
	case "", "stderr":
	case "stdout":
		logWriter = os.Stdout
	default:
		f, err := os.OpenFile(cfg.LogOutput, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file %s: %w", cfg.LogOutput, err)
		}
		logWriter = f
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(logWriter, opts)
	} else {
		handler = slog.NewTextHandler(logWriter, opts)
	}
	return slog.New(handler), nil
}

// Execute adds all child commands to the root command and runs it. Called
// once from main.main().
func Execute() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(saveCmd)
	rootCmd.AddCommand(stateCmd)

	if err := rootCmd.Execute(); err != nil {
		if rootLogger != nil {
			rootLogger.Error("Command execution failed", "error", err)
		} else {
			fmt.Fprintf(os.Stderr, "Command execution failed: %v\n", err)
		}
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "YAML config file (or set GDCMATRIX_CONFIG)")
	rootCmd.PersistentFlags().StringVarP(&outputDir, "output-dir", "o", "./tcga_matrices", "Directory for generated matrix files")
	rootCmd.PersistentFlags().StringVarP(&dbPath, "db-path", "d", "./gdcmatrix_state.duckdb", "Path to DuckDB event log database (:memory: for in-memory)")
	rootCmd.PersistentFlags().IntVarP(&workers, "workers", "w", config.DefaultWorkers, "Number of concurrent sample fetches")
	rootCmd.PersistentFlags().StringSliceVar(&sites, "site", nil, "Primary site to process (can specify multiple, defaults to all)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log output format (text or json)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logOutput, "log-output", "stderr", "Log output destination (stderr, stdout, or file path)")

	rootCmd.Version = "0.1.0"
}

func getLogger() *slog.Logger {
	if rootLogger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return rootLogger
}

func getDB() *sql.DB {
	return dbConn
}

func getConfig() config.Config {
	return appConfig
}
