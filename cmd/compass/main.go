package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/growthcompass/compass/internal/handler"
	appI18n "github.com/growthcompass/compass/internal/i18n"
	"github.com/growthcompass/compass/internal/model"
	"github.com/growthcompass/compass/internal/pipeline"
	"github.com/growthcompass/compass/internal/roster"
	"github.com/growthcompass/compass/internal/store"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("error reading .env file", "error", err)
	}
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "compass",
		Short:        "Extract structured student feedback from instructor documents",
		SilenceUsage: true,
	}

	imp := importCmd()
	root.AddCommand(imp, parseCmd(), serveCmd(), exportCmd(), inspectCmd(), duplicatesCmd())

	// Make "import" the default when no subcommand is given.
	root.RunE = imp.RunE
	root.Args = imp.Args
	root.Flags().AddFlagSet(imp.Flags())

	return root
}

func addLogFlags(f *pflag.FlagSet) {
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
}

func addPipelineFlags(f *pflag.FlagSet) {
	f.String("delimiter", "", "Section delimiter (default: try \"Student:\" then \"Student Name:\")")
	f.String("roster", "", "YAML roster mapping canonical student names to aliases")
	f.IntP("workers", "w", 4, "Documents loaded in parallel")
	f.Duration("load-timeout", 30*time.Second, "Time limit for loading one document (0 = none)")
	f.Int64("max-file-size", 50<<20, "Largest document accepted, in bytes")
	f.StringP("lang", "l", "en", "Summary language (en, zh)")
}

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import [ROOT]",
		Short: "Import every feedback document under a folder",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runImport,
	}
	f := cmd.Flags()
	f.String("db", "compass.db", "SQLite database path or postgres:// DSN")
	f.StringP("root", "r", "", "Feedback folder (used when no ROOT argument is given)")
	f.String("conflict", string(model.ConflictIgnore), "What to do with records already stored (ignore, update)")
	f.Bool("force", false, "Re-read documents whose content has not changed")
	addPipelineFlags(f)
	addLogFlags(f)
	return cmd
}

func parseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "parse FILE...",
		Short: "Extract records from documents and print them as JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runParse,
	}
	f := cmd.Flags()
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	addPipelineFlags(f)
	addLogFlags(f)
	return cmd
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP feedback API",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.String("db", "compass.db", "SQLite database path or postgres:// DSN")
	f.StringP("root", "r", "", "Feedback folder scanned by POST /api/feedback/scan")
	f.String("conflict", string(model.ConflictIgnore), "What to do with records already stored (ignore, update)")
	f.String("base-path", "", "URL prefix for sub-path deployments (e.g. /compass)")
	addPipelineFlags(f)
	addLogFlags(f)
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export stored feedback as JSON",
		Args:  cobra.NoArgs,
		RunE:  runExport,
	}
	f := cmd.Flags()
	f.String("db", "compass.db", "SQLite database path or postgres:// DSN")
	f.String("class", "", "Only export this class code")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	addLogFlags(f)
	return cmd
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("COMPASS")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("compass")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/compass")
	v.AddConfigPath("/etc/compass")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Debug("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

// localized initializes the translation bundle and returns a context carrying
// a localizer for the configured language.
func localized(ctx context.Context, v *viper.Viper) (context.Context, error) {
	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return nil, fmt.Errorf("init i18n: %w", err)
	}
	return appI18n.WithLocalizer(ctx, appI18n.NewLocalizer(lang)), nil
}

func conflictMode(s string) (model.ConflictMode, error) {
	switch mode := model.ConflictMode(strings.ToLower(strings.TrimSpace(s))); mode {
	case "", model.ConflictIgnore:
		return model.ConflictIgnore, nil
	case model.ConflictUpdate:
		return mode, nil
	default:
		return "", fmt.Errorf("invalid conflict mode %q (want ignore or update)", s)
	}
}

func delimiters(s string) []string {
	if s = strings.TrimSpace(s); s == "" {
		return nil
	}
	return []string{s}
}

// newPipeline builds a pipeline from the pipeline flags. st may be nil.
func newPipeline(v *viper.Viper, st pipeline.Store) (*pipeline.Pipeline, error) {
	cfg := pipeline.Config{
		Workers:     v.GetInt("workers"),
		LoadTimeout: v.GetDuration("load-timeout"),
		MaxFileSize: v.GetInt64("max-file-size"),
		Force:       v.GetBool("force"),
		Delimiters:  delimiters(v.GetString("delimiter")),
		Logger:      slog.Default(),
	}
	mode, err := conflictMode(v.GetString("conflict"))
	if err != nil {
		return nil, err
	}
	cfg.Conflict = mode

	r, err := roster.Load(v.GetString("roster"))
	if err != nil {
		return nil, err
	}
	if r.Len() > 0 {
		slog.Info("loaded roster", "path", v.GetString("roster"), "students", r.Len())
	}
	return pipeline.New(cfg, r, st), nil
}

func openStore(v *viper.Viper) (*store.Store, error) {
	db, err := store.New(v.GetString("db"))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}

// outputWriter returns stdout for "" or "-", otherwise a created file.
func outputWriter(path string) (io.WriteCloser, error) {
	if path == "" || path == "-" {
		return nopCloser{os.Stdout}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create output file: %w", err)
	}
	return f, nil
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}

	w, err := outputWriter(path)
	if err != nil {
		return err
	}
	defer w.Close()

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	// Ensure trailing newline.
	_, _ = fmt.Fprintln(w)
	return nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := openStore(v)
	if err != nil {
		return err
	}
	defer db.Close()

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	p, err := newPipeline(v, db)
	if err != nil {
		return err
	}
	h := handler.New(db, p, handler.Config{
		Root:          v.GetString("root"),
		MaxUploadSize: v.GetInt64("max-file-size"),
	})

	// Normalize base path.
	basePath := strings.TrimRight(v.GetString("base-path"), "/")
	if basePath != "" && !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(appI18n.Middleware(lang))

	if basePath != "" {
		r.Route(basePath, h.Routes)
	} else {
		h.Routes(r)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr := v.GetString("addr")
	srv := &http.Server{Addr: addr, Handler: r}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown", "error", err)
		}
	}()

	slog.Info("starting server",
		"addr", addr,
		"db_driver", db.DriverName(),
		"root", v.GetString("root"),
		"lang", lang,
		"base_path", basePath,
	)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func runExport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := openStore(v)
	if err != nil {
		return err
	}
	defer db.Close()

	export, err := db.Export(cmd.Context(), v.GetString("class"))
	if err != nil {
		return fmt.Errorf("export feedback: %w", err)
	}
	slog.Info("exported feedback", "count", export.Count, "class", export.Class)
	return writeJSON(v.GetString("output"), export)
}
