package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Defaults used when the corresponding environment variable is unset or invalid.
const (
	DefaultPort        = "8080"
	DefaultFetchSize   = 256 * 1024
	DefaultTileHeight  = 52
	DefaultHTTPTimeout = 60 * time.Second
	DefaultMountAddr   = "127.0.0.1:0"
)

// Settings is the server configuration resolved from the environment.
type Settings struct {
	Port          string
	LogLevel      string
	LogFormat     string
	WorkDir       string
	FFmpegBinary  string
	FFprobeBinary string
	// FetchSize is the minimum number of bytes requested per remote range GET.
	FetchSize   int64
	TileHeight  int
	HTTPTimeout time.Duration
	MountAddr   string
}

// Load reads the .env file from the current working directory and sets
// environment variables. If .env does not exist, Load returns an error but
// callers can ignore it and use system env or defaults. Pass one or more paths
// to load from specific files (e.g. ".env"); with no paths, ".env" is used.
func Load(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	return godotenv.Load(paths...)
}

// FromEnv builds Settings from the current environment. Call Load first to
// pick up a .env file.
func FromEnv() Settings {
	s := Settings{
		Port:          GetEnv("PORT", DefaultPort),
		LogLevel:      GetEnv("LOG_LEVEL", "info"),
		LogFormat:     GetEnv("LOG_FORMAT", "json"),
		WorkDir:       GetEnv("WORK_DIR", os.TempDir()),
		FFmpegBinary:  GetEnv("FFMPEG_BINARY", "ffmpeg"),
		FFprobeBinary: GetEnv("FFPROBE_BINARY", "ffprobe"),
		FetchSize:     GetEnvInt64("FETCH_SIZE", DefaultFetchSize),
		TileHeight:    GetEnvInt("TILE_HEIGHT", DefaultTileHeight),
		HTTPTimeout:   GetEnvDuration("HTTP_TIMEOUT", DefaultHTTPTimeout),
		MountAddr:     GetEnv("MOUNT_ADDR", DefaultMountAddr),
	}
	if s.FetchSize <= 0 {
		s.FetchSize = DefaultFetchSize
	}
	if s.TileHeight <= 0 {
		s.TileHeight = DefaultTileHeight
	}
	return s
}

// GetEnv returns the value of the environment variable named by key, or fallback
// if the variable is unset or empty.
func GetEnv(key, fallback string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return fallback
}

// GetEnvInt returns the integer value of the environment variable named by key,
// or fallback if the variable is unset, empty, or not a valid integer.
func GetEnvInt(key string, fallback int) int {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return fallback
}

// GetEnvInt64 is GetEnvInt for 64-bit values such as byte counts.
func GetEnvInt64(key string, fallback int64) int64 {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

// GetEnvDuration parses the variable with time.ParseDuration ("30s", "2m").
func GetEnvDuration(key string, fallback time.Duration) time.Duration {
	if s := os.Getenv(key); s != "" {
		if d, err := time.ParseDuration(s); err == nil {
			return d
		}
	}
	return fallback
}
