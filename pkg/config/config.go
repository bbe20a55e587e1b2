package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds everything the pipeline and CLI need.
type Config struct {
	Paths    PathsConfig
	Analysis AnalysisConfig
	Fetch    FetchConfig
	App      AppConfig
}

// PathsConfig locates the corpus on disk.
type PathsConfig struct {
	DataDir  string
	RawDir   string
	TextsDir string
	DBPath   string
	Manifest string // optional JSON manifest overriding the built-in book list
}

// AnalysisConfig tunes index population.
type AnalysisConfig struct {
	MinWordFreq  int // total corpus count a word needs before snippets are stored
	MaxSnippets  int // per (word, book)
	ContextChars int
	Workers      int
	BatchSize    int
}

// FetchConfig tunes the downloader.
type FetchConfig struct {
	BaseURL       string
	UserAgent     string
	Delay         time.Duration
	Timeout       time.Duration
	Retries       int
	RetryBackoff  time.Duration
	RespectRobots bool
}

type AppConfig struct {
	LogLevel string
}

// Load reads an optional .env file and then the environment, falling back to defaults.
func Load() *Config {
	_ = godotenv.Load()

	dataDir := getEnv("LIVY_DATA_DIR", "data")
	return &Config{
		Paths: PathsConfig{
			DataDir:  dataDir,
			RawDir:   getEnv("LIVY_RAW_DIR", filepath.Join(dataDir, "raw")),
			TextsDir: getEnv("LIVY_TEXTS_DIR", filepath.Join(dataDir, "texts")),
			DBPath:   getEnv("LIVY_DB_PATH", filepath.Join(dataDir, "analysis", "word_index.sqlite")),
			Manifest: getEnv("LIVY_MANIFEST", ""),
		},
		Analysis: AnalysisConfig{
			MinWordFreq:  getEnvInt("LIVY_MIN_WORD_FREQ", 2),
			MaxSnippets:  getEnvInt("LIVY_MAX_SNIPPETS", 5),
			ContextChars: getEnvInt("LIVY_CONTEXT_CHARS", 50),
			Workers:      getEnvInt("LIVY_WORKERS", runtime.NumCPU()),
			BatchSize:    getEnvInt("LIVY_BATCH_SIZE", 500),
		},
		Fetch: FetchConfig{
			BaseURL:       getEnv("LIVY_BASE_URL", "https://www.thelatinlibrary.com/"),
			UserAgent:     getEnv("LIVY_USER_AGENT", "LivyTextAnalysis/1.0 (Educational Research Project)"),
			Delay:         getEnvDuration("LIVY_FETCH_DELAY", 1500*time.Millisecond),
			Timeout:       getEnvDuration("LIVY_FETCH_TIMEOUT", 30*time.Second),
			Retries:       getEnvInt("LIVY_FETCH_RETRIES", 3),
			RetryBackoff:  getEnvDuration("LIVY_FETCH_BACKOFF", 2*time.Second),
			RespectRobots: getEnvBool("LIVY_RESPECT_ROBOTS", true),
		},
		App: AppConfig{
			LogLevel: strings.ToLower(getEnv("LIVY_LOG_LEVEL", "info")),
		},
	}
}

func (c *Config) Validate() error {
	if c.Paths.DBPath == "" {
		return fmt.Errorf("LIVY_DB_PATH must not be empty")
	}
	if c.Analysis.MinWordFreq < 1 {
		return fmt.Errorf("LIVY_MIN_WORD_FREQ must be >= 1, got %d", c.Analysis.MinWordFreq)
	}
	if c.Analysis.MaxSnippets < 1 {
		return fmt.Errorf("LIVY_MAX_SNIPPETS must be >= 1, got %d", c.Analysis.MaxSnippets)
	}
	if c.Analysis.ContextChars < 0 {
		return fmt.Errorf("LIVY_CONTEXT_CHARS must be >= 0, got %d", c.Analysis.ContextChars)
	}
	if c.Analysis.Workers < 1 {
		return fmt.Errorf("LIVY_WORKERS must be >= 1, got %d", c.Analysis.Workers)
	}
	if c.Analysis.BatchSize < 1 {
		return fmt.Errorf("LIVY_BATCH_SIZE must be >= 1, got %d", c.Analysis.BatchSize)
	}
	if c.Fetch.Retries < 1 {
		return fmt.Errorf("LIVY_FETCH_RETRIES must be >= 1, got %d", c.Fetch.Retries)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
