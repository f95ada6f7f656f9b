package config

import (
	"os"
	"strconv"
	"time"
)

// Config captures everything main needs to wire the service.
type Config struct {
	Addr string

	EvalServiceURL string
	EvalAPIToken   string
	EvalTimeout    time.Duration

	PostgresURL  string
	SaveAnalyses bool

	OverpassURL     string
	OverpassTimeout time.Duration

	Debug bool
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() Config {
	return Config{
		Addr:            getenv("HTTP_ADDR", ":8080"),
		EvalServiceURL:  os.Getenv("EVAL_SERVICE_URL"),
		EvalAPIToken:    os.Getenv("EVAL_API_TOKEN"),
		EvalTimeout:     durationEnv("EVAL_TIMEOUT", 60*time.Second),
		PostgresURL:     os.Getenv("POSTGRES_URL"),
		SaveAnalyses:    os.Getenv("SAVE_ANALYSES") == "true",
		OverpassURL:     getenv("OVERPASS_URL", "https://overpass-api.de/api/interpreter"),
		OverpassTimeout: durationEnv("OVERPASS_TIMEOUT", 25*time.Second),
		Debug:           boolEnv("DEBUG"),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// durationEnv accepts Go durations ("90s") or a bare number of seconds.
func durationEnv(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return fallback
}

func boolEnv(key string) bool {
	b, _ := strconv.ParseBool(os.Getenv(key))
	return b
}
