package common

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	OCR      OCRConfig
	Acquire  AcquireConfig
	Export   ExportConfig
	Cache    CacheConfig
	LogLevel slog.Level
}

// DatabaseConfig holds scan history configuration. Driver is "sqlite" or "postgres";
// an empty DSN disables history.
type DatabaseConfig struct {
	Driver           string
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	GRPCAddr string
	HTTPAddr string
}

// OCRConfig holds OCR-related configuration
type OCRConfig struct {
	Engine        string // "gosseract" | "cli"
	Tesseract     string
	Language      string
	TessdataDir   string
	PSM           int
	OEM           int
	TSVConfidence bool
	Timeout       time.Duration
	Workers       int
	QueueSize     int
}

// AcquireConfig holds camera, gallery and permission configuration
type AcquireConfig struct {
	CameraAccess     string // "granted" | "denied" | "prompt"
	GalleryAccess    string
	CameraCommand    []string
	GalleryDir       string
	HeicConverter    string
	ArtifactCacheDir string
}

// ExportConfig holds document export configuration
type ExportConfig struct {
	Format    string // "pdf" | "html" | "xlsx"
	Template  string // "pre" | "markdown"
	OutputDir string
	PDFFont   string // TrueType file for non-Latin text; empty uses the core Courier font
	Share     string // "dir" | "command" | "log"
	OutboxDir string
	OpenCmd   string
}

// CacheConfig holds OCR result cache configuration. Backend is "", "memory" or "redis".
type CacheConfig struct {
	Backend   string
	RedisAddr string
	RedisDB   int
	TTL       time.Duration
}

// LoadConfig loads configuration from environment variables. A .env file in the
// working directory is read first when present; real environment values win.
func LoadConfig() *Config {
	_ = godotenv.Load()

	return &Config{
		Database: DatabaseConfig{
			Driver:           getEnv("DB_DRIVER", "sqlite"),
			DSN:              getEnv("DB_URL", ""),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 10),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 1),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
		},
		Server: ServerConfig{
			GRPCAddr: getEnv("GRPC_ADDR", ":8080"),
			HTTPAddr: getEnv("HTTP_ADDR", ":8081"),
		},
		OCR: OCRConfig{
			Engine:        getEnv("OCR_ENGINE", "cli"),
			Tesseract:     getEnv("TESSERACT_BIN", "tesseract"),
			Language:      getEnv("OCR_LANG", "eng"),
			TessdataDir:   getEnv("TESSDATA_PREFIX", ""),
			PSM:           getEnvAsInt("OCR_PSM", 0),
			OEM:           getEnvAsInt("OCR_OEM", 0),
			TSVConfidence: getEnvAsBool("OCR_TSV_CONFIDENCE", false),
			Timeout:       getEnvAsDuration("OCR_TIMEOUT", 2*time.Minute),
			Workers:       getEnvAsInt("OCR_WORKERS", 2),
			QueueSize:     getEnvAsInt("OCR_QUEUE_SIZE", 16),
		},
		Acquire: AcquireConfig{
			CameraAccess:     getEnv("SCANSMART_CAMERA_ACCESS", "prompt"),
			GalleryAccess:    getEnv("SCANSMART_GALLERY_ACCESS", "prompt"),
			CameraCommand:    strings.Fields(getEnv("CAMERA_COMMAND", "fswebcam --no-banner -r 1280x720")),
			GalleryDir:       getEnv("GALLERY_DIR", "."),
			HeicConverter:    getEnv("HEIC_CONVERTER", "magick"),
			ArtifactCacheDir: getEnv("ARTIFACT_CACHE_DIR", "./tmp"),
		},
		Export: ExportConfig{
			Format:    getEnv("EXPORT_FORMAT", "pdf"),
			Template:  getEnv("EXPORT_TEMPLATE", "pre"),
			OutputDir: getEnv("EXPORT_DIR", os.TempDir()),
			PDFFont:   getEnv("EXPORT_PDF_FONT", ""),
			Share:     getEnv("SHARE_TARGET", "dir"),
			OutboxDir: getEnv("SHARE_OUTBOX", "./outbox"),
			OpenCmd:   getEnv("SHARE_OPEN_CMD", "xdg-open"),
		},
		Cache: CacheConfig{
			Backend:   getEnv("CACHE_BACKEND", ""),
			RedisAddr: getEnv("REDIS_ADDR", "localhost:6379"),
			RedisDB:   getEnvAsInt("REDIS_DB", 0),
			TTL:       getEnvAsDuration("CACHE_TTL", 24*time.Hour),
		},
		LogLevel: getEnvAsLevel("LOG_LEVEL", slog.LevelInfo),
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsLevel(key string, defaultValue slog.Level) slog.Level {
	if value := os.Getenv(key); value != "" {
		var lvl slog.Level
		if err := lvl.UnmarshalText([]byte(value)); err == nil {
			return lvl
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	v := NewValidator()
	v.Field("OCR_LANG", c.OCR.Language, Required, MaxLength(64))
	v.Field("OCR_ENGINE", c.OCR.Engine, OneOf("gosseract", "cli"))
	v.Field("SCANSMART_CAMERA_ACCESS", c.Acquire.CameraAccess, OneOf("granted", "denied", "prompt"))
	v.Field("SCANSMART_GALLERY_ACCESS", c.Acquire.GalleryAccess, OneOf("granted", "denied", "prompt"))
	v.Field("EXPORT_FORMAT", c.Export.Format, OneOf("pdf", "html", "xlsx"))
	v.Field("EXPORT_TEMPLATE", c.Export.Template, OneOf("pre", "markdown"))
	v.Field("SHARE_TARGET", c.Export.Share, OneOf("dir", "command", "log"))
	v.Field("CACHE_BACKEND", c.Cache.Backend, OneOf("", "memory", "redis"))
	if c.Database.DSN != "" {
		v.Field("DB_DRIVER", c.Database.Driver, OneOf("sqlite", "postgres"))
	}
	if c.OCR.Workers <= 0 {
		v.Field("OCR_WORKERS", c.OCR.Workers, func(name string, value interface{}) *ValidationError {
			return &ValidationError{Field: name, Value: value, Message: "must be positive"}
		})
	}
	if v.HasErrors() {
		return NewAppError("CONFIG_ERROR", v.ErrorMessage(), ErrInvalidInput)
	}
	return nil
}
