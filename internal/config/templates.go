package config

import (
	"fmt"
	"os"
	"strings"
)

// Template returns the starter TOML for a config kind.
func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "medium":
		return mediumTemplate, nil
	case "sitter":
		return sitterTemplate, nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

// WriteTemplate materializes the starter config at path. Existing files
// survive unless overwrite is set.
func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const mediumTemplate = `node = "medium.local"
origin = "http://medium.example"
relay_listen_addr = "tcp://127.0.0.1:9690"
admin_listen_addr = "127.0.0.1:9691"
admin_cors_origins = ["http://localhost:3000"]
admin_token = ""
invited = ["http://alpha.example", "http://bravo.example"]
heartbeat_tolerance = "15s"
status_interval = "30s"

[store]
kind = "memory"
root = ""
`

const sitterTemplate = `origin = "http://alpha.example"
medium = "http://medium.example"
relay_connect_addr = "tcp://127.0.0.1:9690"
sitter_id = ""
heartbeat_interval = "5s"
request_timeout = "0s"
`
