package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/docpipe/docpipe/internal/api"
	"github.com/docpipe/docpipe/internal/blob"
	"github.com/docpipe/docpipe/internal/flow"
	"github.com/docpipe/docpipe/internal/genai"
	"github.com/docpipe/docpipe/internal/lockfile"
	"github.com/docpipe/docpipe/internal/scheduler"
	"github.com/docpipe/docpipe/internal/store"
	"github.com/docpipe/docpipe/internal/util"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for docpipe state data
	DefaultStateDir = "/var/lib/docpipe"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "docpipe.db"
	// DefaultBlobDirName is the default directory name for blob storage
	DefaultBlobDirName = "blobs"
)

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	// The SQLite database and filesystem blobs live in the state directory;
	// refuse to start if another instance already owns it.
	lock, err := lockfile.AcquireLock(*flags.stateDir)
	if err != nil {
		slog.Error("Failed to acquire state directory lock", "error", err)
		os.Exit(1)
	}
	defer lock.Release()

	st, err := buildStore(flags)
	if err != nil {
		slog.Error("Failed to initialize store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	blobs, err := buildBlobStore(flags)
	if err != nil {
		slog.Error("Failed to initialize blob storage", "error", err)
		os.Exit(1)
	}

	gaClient, err := genai.NewClient(genai.WithAPIKey(*flags.openaiKey))
	if err != nil {
		slog.Error("Failed to initialize GenAI client", "error", err)
		os.Exit(1)
	}

	engine := flow.NewEngine(flow.WithEnricher(gaClient))
	server := api.NewServer(st, blobs, gaClient, engine, api.WithAddr(*flags.apiAddr))

	sched := scheduler.NewScheduler()
	defer sched.Stop()
	if err := sched.ScheduleSessionCleanup(st); err != nil {
		slog.Error("Failed to schedule session cleanup", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("Bootstrapping docpipe with configured modules")
	slog.Debug("Final configuration",
		"state_dir", *flags.stateDir, "dsn_set", *flags.dbDSN != "",
		"blob_dir", *flags.blobDir, "gcs_bucket_set", *flags.gcsBucket != "",
		"redis_set", *flags.redisAddr != "", "api_addr", *flags.apiAddr)
	if err := server.Run(ctx); err != nil {
		slog.Error("docpipe failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("docpipe exited successfully")
}

// Config holds environment configuration
type Config struct {
	DatabaseURL string
	StateDir    string
	BlobDir     string
	GCSBucket   string
	RedisAddr   string
	OpenAIKey   string
	APIAddr     string
}

// Flags holds command line flag values
type Flags struct {
	stateDir  *string
	dbDSN     *string
	blobDir   *string
	gcsBucket *string
	redisAddr *string
	openaiKey *string
	apiAddr   *string
}

// initializeLogger sets up structured logging. Debug level is opt-in via
// $DOCPIPE_DEBUG.
func initializeLogger() {
	level := slog.LevelInfo
	if util.ParseBoolEnv("DOCPIPE_DEBUG", false) {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		DatabaseURL: os.Getenv("DATABASE_URL"),
		StateDir:    os.Getenv("DOCPIPE_STATE_DIR"),
		BlobDir:     os.Getenv("DOCPIPE_BLOB_DIR"),
		GCSBucket:   os.Getenv("DOCPIPE_GCS_BUCKET"),
		RedisAddr:   os.Getenv("DOCPIPE_REDIS_ADDR"),
		OpenAIKey:   os.Getenv("OPENAI_API_KEY"),
		APIAddr:     os.Getenv("API_ADDR"),
	}

	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No DOCPIPE_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}
	if config.BlobDir == "" {
		config.BlobDir = filepath.Join(config.StateDir, DefaultBlobDirName)
		slog.Debug("No DOCPIPE_BLOB_DIR set, defaulting to state directory", "blob_dir", config.BlobDir)
	}

	slog.Debug("environment variables loaded",
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"DOCPIPE_STATE_DIR", config.StateDir,
		"DOCPIPE_BLOB_DIR", config.BlobDir,
		"DOCPIPE_GCS_BUCKET_SET", config.GCSBucket != "",
		"DOCPIPE_REDIS_ADDR_SET", config.RedisAddr != "",
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"API_ADDR", config.APIAddr)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		stateDir:  flag.String("state-dir", config.StateDir, "state directory for docpipe data (overrides $DOCPIPE_STATE_DIR)"),
		dbDSN:     flag.String("db-dsn", config.DatabaseURL, "database DSN, Postgres URL or SQLite path (overrides $DATABASE_URL)"),
		blobDir:   flag.String("blob-dir", config.BlobDir, "directory for filesystem blob storage (overrides $DOCPIPE_BLOB_DIR)"),
		gcsBucket: flag.String("gcs-bucket", config.GCSBucket, "GCS bucket for blob storage, takes precedence over blob-dir (overrides $DOCPIPE_GCS_BUCKET)"),
		redisAddr: flag.String("redis-addr", config.RedisAddr, "Redis address for the blob cache (overrides $DOCPIPE_REDIS_ADDR)"),
		openaiKey: flag.String("openai-api-key", config.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)"),
		apiAddr:   flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
	}
	flag.Parse()
	return flags
}

// buildStore selects the database backend from the DSN.
func buildStore(flags Flags) (store.Store, error) {
	dsn := *flags.dbDSN
	switch store.DetectDSNType(dsn) {
	case "postgres":
		slog.Info("Using Postgres store")
		return store.NewPostgresStore(store.WithPostgresDSN(dsn))
	default:
		slog.Info("Using SQLite store", "path", dsn)
		return store.NewSQLiteStore(store.WithSQLiteDSN(dsn))
	}
}

// buildBlobStore selects the blob backend and wraps it with a cache.
func buildBlobStore(flags Flags) (blob.Store, error) {
	var backend blob.Store
	var err error
	if *flags.gcsBucket != "" {
		slog.Info("Using GCS blob storage", "bucket", *flags.gcsBucket)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		backend, err = blob.NewGCSStore(ctx, blob.WithBucket(*flags.gcsBucket))
	} else {
		slog.Info("Using filesystem blob storage", "dir", *flags.blobDir)
		backend, err = blob.NewFSStore(blob.WithBaseDir(*flags.blobDir))
	}
	if err != nil {
		return nil, err
	}

	var cache blob.Cache
	if *flags.redisAddr != "" {
		cache, err = blob.NewRedisCache(*flags.redisAddr, blob.DefaultCacheTTL)
		if err != nil {
			return nil, err
		}
		slog.Info("Using Redis blob cache", "addr", *flags.redisAddr)
	} else {
		cache = blob.NewMemoryCache(blob.DefaultCacheTTL)
	}
	return blob.NewCachedStore(backend, cache), nil
}
