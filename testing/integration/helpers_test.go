package integration

import (
	"os"
	"testing"

	"github.com/zoobzio/mobius"
)

// appConfig is the model of the config loops under test.
type appConfig struct {
	Port int    `json:"port" yaml:"port" validate:"min=1,max=65535"`
	Host string `json:"host" yaml:"host" validate:"required"`
}

// applied is announced every time a config replaces the model.
type applied struct {
	Port int
}

// apply replaces the model with each loaded config.
func apply(_ appConfig, cfg appConfig) mobius.Next[appConfig, applied] {
	return mobius.NextModel(cfg, applied{Port: cfg.Port})
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
}
