package appconfig

import (
	"os"
	"path/filepath"

	"pkt.systems/cellpad/schema"
)

// Config is the top-level application configuration.
type Config struct {
	ConfigVersion int            `mapstructure:"config_version" yaml:"config_version"`
	NotebookDir   string         `mapstructure:"notebook_dir" yaml:"notebook_dir"`
	Notebook      NotebookConfig `mapstructure:"notebook" yaml:"notebook"`
	Jupyter       JupyterConfig  `mapstructure:"jupyter" yaml:"jupyter"`
	Render        RenderConfig   `mapstructure:"render" yaml:"render"`
	Logging       LoggingConfig  `mapstructure:"logging" yaml:"logging"`
}

// CurrentConfigVersion marks the supported config version.
const CurrentConfigVersion = 1

// NotebookConfig controls notebook model defaults.
type NotebookConfig struct {
	DefaultMimetype string `mapstructure:"default_mimetype" yaml:"default_mimetype"`
	Username        string `mapstructure:"username" yaml:"username"`
}

// JupyterConfig points at the Jupyter server that runs kernels.
type JupyterConfig struct {
	BaseURL               string `mapstructure:"base_url" yaml:"base_url"`
	Token                 string `mapstructure:"token" yaml:"token"`
	KernelName            string `mapstructure:"kernel_name" yaml:"kernel_name"`
	RequestTimeoutSeconds int    `mapstructure:"request_timeout_seconds" yaml:"request_timeout_seconds"`
	ExecuteTimeoutSeconds int    `mapstructure:"execute_timeout_seconds" yaml:"execute_timeout_seconds"`
	ShutdownKernel        bool   `mapstructure:"shutdown_kernel" yaml:"shutdown_kernel"`
}

// RenderConfig controls HTML rendering.
type RenderConfig struct {
	WatchDebounceMillis int `mapstructure:"watch_debounce_ms" yaml:"watch_debounce_ms"`
}

// LoggingConfig controls audit logging behavior.
type LoggingConfig struct {
	DisableAuditTrails bool `mapstructure:"disable_audit_trails" yaml:"disable_audit_trails"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, err
	}
	return Config{
		ConfigVersion: CurrentConfigVersion,
		NotebookDir:   filepath.Join(home, ".cellpad", "notebooks"),
		Notebook: NotebookConfig{
			DefaultMimetype: schema.DefaultMimetype,
			Username:        "",
		},
		Jupyter: JupyterConfig{
			BaseURL:               "http://127.0.0.1:8888",
			Token:                 "${JUPYTER_TOKEN}",
			KernelName:            schema.DefaultKernelName,
			RequestTimeoutSeconds: 30,
			ExecuteTimeoutSeconds: 600,
			ShutdownKernel:        true,
		},
		Render: RenderConfig{
			WatchDebounceMillis: 200,
		},
		Logging: LoggingConfig{
			DisableAuditTrails: false,
		},
	}, nil
}

// NotebookSettings converts the config into notebook model defaults.
func (c Config) NotebookSettings() schema.NotebookConfig {
	return schema.NotebookConfig{
		DefaultMimetype:     c.Notebook.DefaultMimetype,
		KernelName:          c.Jupyter.KernelName,
		Username:            c.Notebook.Username,
		DisableAuditLogging: c.Logging.DisableAuditTrails,
	}
}

// DefaultConfigPath returns the standard config path.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cellpad", "config.yaml"), nil
}
