package config

import (
	"fmt"
	"os"
	"strings"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", "service":
		return serviceTemplate, nil
	case "collector":
		return collectorTemplate, nil
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

const serviceTemplate = `name = "edgetrack"
log_level = "info"

[admin]
addr = "127.0.0.1:9300"
cors_origins = ["http://localhost:3000"]

[store]
path = "local/flags"

[channel]
sink = "log"
buffer = 1024
max_attempts = 5

[[targets]]
token = "app"
properties = { env = "prod" }

[[targets]]
token = "app/checkout"
parent = "app"
properties = { env = "staging", team = "payments" }
`

const collectorTemplate = `name = "edgetrack"
log_level = "info"

[admin]
addr = "127.0.0.1:9300"
token = ""

[channel]
sink = "http"
endpoint = "http://localhost:8080/events"
api_key = ""
timeout = "10s"
buffer = 4096
max_attempts = 5
rate_per_second = 50.0
burst = 10
backoff_initial = "250ms"
backoff_max = "5s"
backoff_multiplier = 2.0
backoff_jitter = true

[[targets]]
token = "app"
`
