package config

const (
	defaultDataDir              = "~/.local/share/playhead"
	defaultLogDir               = "~/.local/share/playhead/logs"
	defaultEngineBinary         = "mpv"
	defaultEngineSocketDir      = "~/.local/share/playhead/run"
	defaultEngineStartupTimeout = 10
	defaultEngineRequestTimeout = 5
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Engine: Engine{
			Binary:         defaultEngineBinary,
			SocketDir:      defaultEngineSocketDir,
			StartupTimeout: defaultEngineStartupTimeout,
			RequestTimeout: defaultEngineRequestTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
