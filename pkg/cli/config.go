package cli

import (
	"os"
	"path/filepath"

	"github.com/apex/log"
	"gopkg.in/yaml.v3"
)

// Config holds the optional krama.yaml settings. Flags override config
// values; config values override built-in defaults.
type Config struct {
	// Store selects the default cache backend: fs, memory, sqlite,
	// postgres, mysql, or redis.
	Store string `yaml:"store"`

	// CacheDir overrides the filesystem store root.
	CacheDir string `yaml:"cache_dir"`

	// DSN is the connection string for database and redis backends.
	DSN string `yaml:"dsn"`

	// HistoryPath overrides the sqlite history ledger location.
	HistoryPath string `yaml:"history_path"`

	// WarnUncacheable surfaces uncacheable calls at warning level.
	WarnUncacheable bool `yaml:"warn_uncacheable"`

	// Plain disables styled terminal output.
	Plain bool `yaml:"plain"`
}

// LoadConfig reads krama.yaml from the first standard location that has
// one. A missing file is not an error: the zero Config is returned.
func LoadConfig() (Config, error) {
	path, ok := configPath()
	if !ok {
		return Config{}, nil
	}

	bytes, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := yaml.Unmarshal(bytes, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func configPath() (string, bool) {
	var candidates []string = []string{
		os.Getenv("XDG_CONFIG_HOME"),
		os.Getenv("APPDATA"),
		os.Getenv("HOME"),
	}

	for _, c := range candidates {
		if c == "" {
			continue
		}
		file := filepath.Join(c, "krama.yaml")
		if fileInfo, err := os.Stat(file); err == nil {
			if !fileInfo.IsDir() {
				log.Debugf("using config file: %s", file)
				return file, true
			}
		}
	}
	return "", false
}
