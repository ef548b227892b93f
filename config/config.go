package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config enthält alle Konfigurationsparameter aus Umgebungsvariablen.
type Config struct {
	// DBDriver wählt den Store: "postgres" für den Betrieb, "sqlite" für lokale Läufe.
	DBDriver   string `envconfig:"DB_DRIVER" default:"postgres"`
	DBHost     string `envconfig:"DB_HOST" default:"localhost"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER"`
	DBPassword string `envconfig:"DB_PASSWORD"`
	DBName     string `envconfig:"DB_NAME" default:"competitor_watch"`
	SQLitePath string `envconfig:"SQLITE_PATH" default:"data/competitor_watch.db"`

	HTTPPort     string `envconfig:"HTTP_PORT" default:"4242"`
	APISecretKey string `envconfig:"API_SECRET_KEY"`

	PubMedBaseURL    string        `envconfig:"PUBMED_BASE_URL" default:"https://eutils.ncbi.nlm.nih.gov/entrez/eutils"`
	PubMedAPIKey     string        `envconfig:"PUBMED_API_KEY"`
	PubMedEmail      string        `envconfig:"PUBMED_EMAIL"`
	PubMedTool       string        `envconfig:"PUBMED_TOOL" default:"competitor-watch"`
	PubMedRetMax     int           `envconfig:"PUBMED_RETMAX" default:"200"`
	PubMedBatchSize  int           `envconfig:"PUBMED_BATCH_SIZE" default:"100"`
	PubMedBatchDelay time.Duration `envconfig:"PUBMED_BATCH_DELAY" default:"340ms"`
	PubMedWindowDays int           `envconfig:"PUBMED_WINDOW_DAYS" default:"30"`

	CTGovBaseURL    string        `envconfig:"CTGOV_BASE_URL" default:"https://clinicaltrials.gov/api/v2"`
	CTGovPageSize   int           `envconfig:"CTGOV_PAGE_SIZE" default:"100"`
	CTGovMaxStudies int           `envconfig:"CTGOV_MAX_STUDIES" default:"500"`
	CTGovPageDelay  time.Duration `envconfig:"CTGOV_PAGE_DELAY" default:"200ms"`

	HTTPTimeout time.Duration `envconfig:"HTTP_TIMEOUT" default:"60s"`

	// Provenienz-Archiv: "disk" schreibt nach RawDir, "s3" spiegelt in einen Bucket.
	ArchiveBackend string `envconfig:"ARCHIVE_BACKEND" default:"disk"`
	RawDir         string `envconfig:"RAW_DIR" default:"data/raw"`

	S3Key    string `envconfig:"S3_KEY"`
	S3Secret string `envconfig:"S3_SECRET"`
	S3URL    string `envconfig:"S3_URL"`
	S3Region string `envconfig:"S3_REGION" default:"us-east-1"`
	S3Bucket string `envconfig:"S3_BUCKET"`

	// Übergabe an die Zusammenfassungs-Jobs. Leer = Aufgaben werden nur geloggt.
	RedisAddr     string `envconfig:"REDIS_ADDR"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`
	SummaryQueue  string `envconfig:"SUMMARY_QUEUE" default:"summaries:pending"`
	SummaryLimit  int    `envconfig:"SUMMARY_LIMIT" default:"100"`

	CronSchedule string `envconfig:"CRON_SCHEDULE" default:"0 6 * * *"`
	RosterPath   string `envconfig:"ROSTER_PATH" default:"config/roster.yaml"`
}

// DSN gibt den Data Source Name für die PostgreSQL-Verbindung zurück.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort)
}

// Validate prüft Kombinationen, die envconfig allein nicht abdecken kann.
func (c *Config) Validate() error {
	switch c.DBDriver {
	case "postgres":
		if c.DBUser == "" {
			return fmt.Errorf("DB_USER is required for postgres")
		}
	case "sqlite":
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required for sqlite")
		}
	default:
		return fmt.Errorf("unknown DB_DRIVER %q", c.DBDriver)
	}

	switch c.ArchiveBackend {
	case "disk":
	case "s3":
		if c.S3URL == "" || c.S3Bucket == "" || c.S3Key == "" || c.S3Secret == "" {
			return fmt.Errorf("ARCHIVE_BACKEND=s3 requires S3_URL, S3_BUCKET, S3_KEY and S3_SECRET")
		}
	default:
		return fmt.Errorf("unknown ARCHIVE_BACKEND %q", c.ArchiveBackend)
	}

	if c.PubMedBatchSize <= 0 || c.CTGovPageSize <= 0 {
		return fmt.Errorf("batch and page sizes must be positive")
	}
	return nil
}

// Load lädt die Konfiguration aus den Umgebungsvariablen.
func Load() (*Config, error) {
	_ = godotenv.Load()
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return &c, err
	}
	return &c, c.Validate()
}
