package config

const (
	defaultConfigPath    = "~/.config/cdgrab/config.toml"
	defaultBinDir        = "~/.local/share/cdgrab/bin"
	defaultMusicSubdir   = "cdgrab"
	defaultLogFormat     = "console"
	defaultLogLevel      = "info"
	envTargetDirOverride = "CDGRAB_TARGET_DIR"
)

// Default returns a Config populated with repository defaults. The target
// directory is <home>/Music/cdgrab.
func Default() Config {
	return Config{
		Provision: Provision{
			BinDir: defaultBinDir,
		},
		Download: Download{
			TargetDir: "~/Music/" + defaultMusicSubdir,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
