package config

// Config is the client-side configuration surface: where the remote
// authentication service lives, where the local session file goes, and how
// patient the transport should be.
type Config interface {
	GetBaseURL() string
	GetAppName() string
	GetEnv() string
	GetHTTPTimeoutSeconds() int
	GetStorePath() string
	GetRefreshPath() string
}

type mainConfig struct {
	EnvVars
}

func New() Config {
	return mainConfig{}
}
