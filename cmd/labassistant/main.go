package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"

	"github.com/panphy/labassistant/internal/handler"
	appI18n "github.com/panphy/labassistant/internal/i18n"
	"github.com/panphy/labassistant/internal/marking"
	"github.com/panphy/labassistant/internal/model"
	"github.com/panphy/labassistant/internal/question"
	"github.com/panphy/labassistant/internal/sheet"
	"github.com/panphy/labassistant/internal/store"
	"github.com/panphy/labassistant/internal/submission"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "labassistant",
		Short: "AI-marked physics questions and lab data analysis for the classroom",
	}

	serve := serveCmd()
	root.AddCommand(serve, exportCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `labassistant --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP classroom server",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.String("db", "labassistant.db", "SQLite database path")
	f.StringSliceP("questions", "q", nil, "Paths to questions JSON files (repeatable; empty = built-in set)")
	f.String("openai-url", "https://api.openai.com/v1", "OpenAI-compatible API base URL")
	f.String("openai-key", "", "API key for marking (or set PANPHY_OPENAI_KEY)")
	f.String("openai-model", "gpt-5-nano", "Model used for marking")
	f.Duration("request-timeout", marking.DefaultTimeout, "Per-marking-call timeout")
	f.String("sheet-id", "", "Google Sheets spreadsheet ID for the results log")
	f.String("sheet-creds", "", "Path to Google service account credentials JSON")
	f.String("sheet-range", sheet.DefaultRange, "A1 range of the results table")
	f.String("teacher-password", "", "Teacher dashboard password (or set PANPHY_TEACHER_PASSWORD)")
	f.StringSlice("class-sets", []string{"11Y/Ph1", "11X/Ph2", "10A/Ph1", "Teacher Test"}, "Class sets offered on the submission form")
	f.String("canvas-bg", submission.DefaultBackground, "Drawing canvas background colour (hex)")
	f.Int("max-image-width", submission.DefaultMaxWidth, "Maximum width of drawings sent for marking")
	f.StringP("lang", "l", "en", "UI language")
	f.Bool("secure-cookies", true, "Set Secure flag on session cookies")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export marking results as JSON",
		RunE:  runExport,
	}
	f := cmd.Flags()
	f.String("db", "labassistant.db", "SQLite database path")
	f.String("sheet-id", "", "Read from this Google Sheet instead of the local database")
	f.String("sheet-creds", "", "Path to Google service account credentials JSON")
	f.String("sheet-range", sheet.DefaultRange, "A1 range of the results table")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
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

	v.SetEnvPrefix("PANPHY")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("labassistant")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/labassistant")
	v.AddConfigPath("/etc/labassistant")
	v.AddConfigPath("/data")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	features := model.Features{}

	// A missing teacher password disables the dashboard rather than
	// failing startup; the student flow does not depend on it.
	if err := seedTeacherPassword(db, v.GetString("teacher-password")); err != nil {
		return fmt.Errorf("seed teacher password: %w", err)
	}
	if hash, err := db.TeacherPasswordHash(); err != nil {
		return fmt.Errorf("read teacher password: %w", err)
	} else if hash != "" {
		features.TeacherAuth = true
	} else {
		slog.Warn("no teacher password configured, dashboard disabled")
	}

	registry, err := question.Load(v.GetStringSlice("questions"))
	if err != nil {
		return fmt.Errorf("load questions: %w", err)
	}
	slog.Info("loaded questions", "count", registry.Len())

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	normalizer, err := submission.New(v.GetString("canvas-bg"), v.GetInt("max-image-width"))
	if err != nil {
		return fmt.Errorf("create normalizer: %w", err)
	}

	// A missing API key degrades marking to a 503 instead of failing startup.
	var marker handler.Marker
	if apiKey := v.GetString("openai-key"); apiKey != "" {
		client := marking.New(
			v.GetString("openai-url"),
			apiKey,
			v.GetString("openai-model"),
			v.GetDuration("request-timeout"),
		)
		if err := client.Ping(ctx); err != nil {
			return fmt.Errorf("marking endpoint health check: %w", err)
		}
		slog.Info("marking endpoint OK", "url", v.GetString("openai-url"), "model", v.GetString("openai-model"))
		marker = client
		features.Marking = true
	} else {
		slog.Warn("no API key configured, marking disabled")
	}

	// Results go to the configured sheet when one is set, otherwise to the
	// local database. Either way the handler only sees a sink.
	var sink sheet.Sink = db
	if sheetID := v.GetString("sheet-id"); sheetID != "" {
		svc, err := sheet.NewService(ctx, v.GetString("sheet-creds"), sheetID, v.GetString("sheet-range"))
		if err != nil {
			return fmt.Errorf("create sheets service: %w", err)
		}
		sink = svc
		features.SheetSink = true
		slog.Info("persisting results to Google Sheet", "spreadsheet", sheetID)
	} else {
		slog.Info("persisting results to local database", "path", v.GetString("db"))
	}

	cfg := model.AppConfig{
		Addr:          v.GetString("addr"),
		ClassSets:     v.GetStringSlice("class-sets"),
		MaxImageWidth: v.GetInt("max-image-width"),
		SecureCookies: v.GetBool("secure-cookies"),
		Features:      features,
	}

	h := handler.New(registry, normalizer, marker, sink, db, cfg)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(appI18n.Middleware(lang))
	h.Routes(r)

	slog.Info("starting server",
		"addr", cfg.Addr,
		"questions", registry.Len(),
		"class_sets", cfg.ClassSets,
		"marking", features.Marking,
		"sheet_sink", features.SheetSink,
		"teacher_auth", features.TeacherAuth,
	)
	return http.ListenAndServe(cfg.Addr, r)
}

func runExport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var (
		sink   sheet.Sink
		source string
	)
	if sheetID := v.GetString("sheet-id"); sheetID != "" {
		svc, err := sheet.NewService(ctx, v.GetString("sheet-creds"), sheetID, v.GetString("sheet-range"))
		if err != nil {
			return fmt.Errorf("create sheets service: %w", err)
		}
		sink = svc
		source = "sheet:" + sheetID
	} else {
		db, err := store.New(v.GetString("db"))
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer db.Close()
		sink = db
		source = "db:" + v.GetString("db")
	}

	records, err := sink.Records(ctx)
	if err != nil {
		return fmt.Errorf("read records: %w", err)
	}
	if records == nil {
		records = []model.ResultRecord{}
	}

	export := model.ResultsExport{
		ExportedAt: time.Now().UTC(),
		Source:     source,
		Records:    records,
	}

	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}

	outPath := v.GetString("output")
	var w io.Writer
	if outPath == "" || outPath == "-" {
		w = os.Stdout
	} else {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	// Ensure trailing newline.
	_, _ = fmt.Fprintln(w)

	return nil
}

// seedTeacherPassword stores the dashboard password hash when one is
// supplied. An existing hash is replaced so a rotated password takes
// effect on restart.
func seedTeacherPassword(db *store.Store, password string) error {
	if password == "" {
		return nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash teacher password: %w", err)
	}
	return db.SetTeacherPasswordHash(string(hash))
}
