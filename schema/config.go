package schema

import (
	"errors"
	"os/user"
	"strings"
)

// NotebookConfig defines defaults applied to notebook models.
type NotebookConfig struct {
	// DefaultMimetype is the editor mimetype of new code cells when the
	// notebook metadata does not name a language.
	DefaultMimetype string
	// KernelName is the kernelspec started when a notebook names none.
	KernelName string
	// Username is written into kernel message headers.
	Username string
	// DisableAuditLogging suppresses the debug line logged per execute
	// request.
	DisableAuditLogging bool
}

// DefaultMimetype is used when neither config nor metadata provide one.
const DefaultMimetype = "text/x-ipython"

// DefaultKernelName is the kernelspec started when nothing else is named.
const DefaultKernelName = "python3"

// NormalizeNotebookConfig applies defaults and validates the config.
func NormalizeNotebookConfig(cfg NotebookConfig) (NotebookConfig, error) {
	cfg.DefaultMimetype = strings.TrimSpace(cfg.DefaultMimetype)
	if cfg.DefaultMimetype == "" {
		cfg.DefaultMimetype = DefaultMimetype
	}
	if strings.ContainsAny(cfg.DefaultMimetype, " \t\n") {
		return NotebookConfig{}, errors.New("default mimetype must not contain whitespace")
	}
	cfg.KernelName = strings.TrimSpace(cfg.KernelName)
	if cfg.KernelName == "" {
		cfg.KernelName = DefaultKernelName
	}
	if strings.TrimSpace(cfg.Username) == "" {
		cfg.Username = "username"
		if u, err := user.Current(); err == nil && u.Username != "" {
			cfg.Username = u.Username
		}
	}
	return cfg, nil
}
