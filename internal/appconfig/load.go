package appconfig

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Load reads configuration from the provided path. If path is empty, uses DefaultConfigPath.
func Load(path string) (Config, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return Config{}, err
		}
		path = defaultPath
	}

	cfg, err := DefaultConfig()
	if err != nil {
		return Config{}, err
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetDefault("config_version", cfg.ConfigVersion)
	v.SetDefault("notebook_dir", cfg.NotebookDir)
	v.SetDefault("notebook.default_mimetype", cfg.Notebook.DefaultMimetype)
	v.SetDefault("notebook.username", cfg.Notebook.Username)
	v.SetDefault("jupyter.base_url", cfg.Jupyter.BaseURL)
	v.SetDefault("jupyter.token", cfg.Jupyter.Token)
	v.SetDefault("jupyter.kernel_name", cfg.Jupyter.KernelName)
	v.SetDefault("jupyter.request_timeout_seconds", cfg.Jupyter.RequestTimeoutSeconds)
	v.SetDefault("jupyter.execute_timeout_seconds", cfg.Jupyter.ExecuteTimeoutSeconds)
	v.SetDefault("jupyter.shutdown_kernel", cfg.Jupyter.ShutdownKernel)
	v.SetDefault("render.watch_debounce_ms", cfg.Render.WatchDebounceMillis)
	v.SetDefault("logging.disable_audit_trails", cfg.Logging.DisableAuditTrails)

	configLoaded := false
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return Config{}, err
		}
	} else {
		configLoaded = true
	}

	if configLoaded {
		if !v.IsSet("config_version") {
			return Config{}, fmt.Errorf("config_version is required; expected %d", CurrentConfigVersion)
		}
		if v.GetInt("config_version") != CurrentConfigVersion {
			return Config{}, fmt.Errorf("unsupported config_version %d; expected %d", v.GetInt("config_version"), CurrentConfigVersion)
		}
		if !v.IsSet("notebook_dir") {
			return Config{}, fmt.Errorf("notebook_dir is required for config_version %d", CurrentConfigVersion)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	expandConfigEnv(&cfg)
	if err := validateJupyterConfig(cfg.Jupyter); err != nil {
		return Config{}, err
	}
	if cfg.Render.WatchDebounceMillis < 0 {
		return Config{}, fmt.Errorf("render.watch_debounce_ms must not be negative")
	}
	return cfg, nil
}

func validateJupyterConfig(cfg JupyterConfig) error {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL != "" {
		parsed, err := url.Parse(baseURL)
		if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
			return fmt.Errorf("jupyter.base_url must include an http(s) scheme and host (e.g. http://127.0.0.1:8888)")
		}
		if parsed.RawQuery != "" || parsed.Fragment != "" {
			return fmt.Errorf("jupyter.base_url must not include query or fragment")
		}
	}
	if cfg.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("jupyter.request_timeout_seconds must be positive")
	}
	if cfg.ExecuteTimeoutSeconds <= 0 {
		return fmt.Errorf("jupyter.execute_timeout_seconds must be positive")
	}
	return nil
}

func expandConfigEnv(cfg *Config) {
	if cfg == nil {
		return
	}
	cfg.NotebookDir = expandEnv(cfg.NotebookDir)
	cfg.Notebook.Username = expandEnv(cfg.Notebook.Username)
	cfg.Jupyter.BaseURL = expandEnv(cfg.Jupyter.BaseURL)
	cfg.Jupyter.Token = expandToken(cfg.Jupyter.Token)
}

func expandEnv(value string) string {
	if value == "" {
		return value
	}
	return os.Expand(value, func(key string) string {
		if key == "" {
			return ""
		}
		if val, ok := lookupEnv(key); ok {
			return val
		}
		return "$" + key
	})
}

// expandToken expands like expandEnv but drops unset variables, so an unset
// ${JUPYTER_TOKEN} means no token rather than a literal placeholder.
func expandToken(value string) string {
	return os.Expand(value, func(key string) string {
		val, _ := lookupEnv(key)
		return val
	})
}

func lookupEnv(key string) (string, bool) {
	if val, ok := os.LookupEnv(key); ok {
		return val, true
	}
	switch key {
	case "UID":
		return fmt.Sprintf("%d", os.Getuid()), true
	case "GID":
		return fmt.Sprintf("%d", os.Getgid()), true
	}
	return "", false
}

// WriteDefault writes the default config to the target path.
func WriteDefault(path string, overwrite bool) (string, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return "", err
		}
		path = defaultPath
	}

	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return "", fmt.Errorf("config already exists at %s", path)
		}
	}

	cfg, err := DefaultConfig()
	if err != nil {
		return "", err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", err
	}
	return path, nil
}
