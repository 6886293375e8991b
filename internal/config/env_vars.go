package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

const (
	baseURLVar     = "AUTH_BASE_URL"
	appNameVar     = "APP_NAME"
	envVar         = "ENV"
	httpTimeoutVar = "HTTP_TIMEOUT_SECONDS"
	storePathVar   = "SESSION_STORE_PATH"
	refreshPathVar = "AUTH_REFRESH_PATH"
)

type EnvVars struct{}

var _ Config = mainConfig{}

// Load reads an optional .env file into the environment and returns the
// config. A missing .env file is not an error; real environment variables
// always win.
func Load() Config {
	_ = godotenv.Load()
	return New()
}

// GetBaseURL returns the remote authentication service's base URL
// (e.g. "https://auth.example.com").
func (EnvVars) GetBaseURL() string {
	return GetEnv(baseURLVar, "http://localhost:8080")
}

func (EnvVars) GetAppName() string {
	return GetEnv(appNameVar, "Go Auth Client")
}

func (EnvVars) GetEnv() string {
	return GetEnv(envVar, "DEV")
}

func (EnvVars) GetHTTPTimeoutSeconds() int {
	raw := GetEnv(httpTimeoutVar, "30")
	seconds, err := strconv.Atoi(raw)
	if err != nil || seconds <= 0 {
		return 30
	}
	return seconds
}

// GetStorePath returns the path of the local session database file.
func (EnvVars) GetStorePath() string {
	return GetEnv(storePathVar, "./session.db")
}

// GetRefreshPath returns the refresh endpoint path the refresh transport
// must never retry against.
func (EnvVars) GetRefreshPath() string {
	return GetEnv(refreshPathVar, "/auth/refresh")
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}
