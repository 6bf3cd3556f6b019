package config

import (
	"fmt"
	"os"
	"strings"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "director":
		return directorTemplate, nil
	case "pilot":
		return pilotTemplate, nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

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

const directorTemplate = `name = "director"
listen = ":7860"
api_key = "temp-api-key"
policy = "replace"
max_buffer_bytes = 1048576
ops_addr = ":7861"
cors_origins = ["http://localhost:3000"]
log_file = ""
`

const pilotTemplate = `name = "pilot"
address = "localhost:7860"
api_key = "temp-api-key"
base_delay_ms = 2000
max_delay_ms = 10000
jitter = false
max_buffer_bytes = 1048576
ops_addr = ":7862"
cors_origins = ["http://localhost:3000"]
log_file = ""
`
