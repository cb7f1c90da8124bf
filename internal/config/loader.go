package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "medscribe.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML file is optional; missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg. A YAML agents
// list replaces the default agents entirely.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is validated by caller
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "MEDSCRIBE_PORT")
	setString(&cfg.Server.CORSOrigin, "MEDSCRIBE_CORS_ORIGIN")
	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "MEDSCRIBE_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "MEDSCRIBE_PG_MIN_CONNS")
	setDuration(&cfg.Postgres.MaxConnLifetime, "MEDSCRIBE_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.Postgres.MaxConnIdleTime, "MEDSCRIBE_PG_MAX_CONN_IDLE_TIME")
	setDuration(&cfg.Postgres.HealthCheck, "MEDSCRIBE_PG_HEALTH_CHECK")
	setString(&cfg.NATS.URL, "NATS_URL")
	setBool(&cfg.NATS.Subscribe, "MEDSCRIBE_NATS_SUBSCRIBE")
	setString(&cfg.LiteLLM.URL, "LITELLM_URL")
	setString(&cfg.LiteLLM.MasterKey, "LITELLM_MASTER_KEY")
	setString(&cfg.LiteLLM.Model, "MEDSCRIBE_CLASSIFIER_MODEL")
	setDuration(&cfg.LiteLLM.Timeout, "MEDSCRIBE_LITELLM_TIMEOUT")
	setString(&cfg.Extraction.URL, "MEDSCRIBE_EXTRACTION_URL")
	setString(&cfg.Extraction.APIKey, "MEDSCRIBE_EXTRACTION_API_KEY")
	setDuration(&cfg.Extraction.Timeout, "MEDSCRIBE_EXTRACTION_TIMEOUT")
	setString(&cfg.Calendar.URL, "MEDSCRIBE_CALENDAR_URL")
	setString(&cfg.Calendar.CalendarID, "MEDSCRIBE_CALENDAR_ID")
	setString(&cfg.Calendar.Token, "MEDSCRIBE_CALENDAR_TOKEN")
	setDuration(&cfg.Calendar.EventDuration, "MEDSCRIBE_CALENDAR_EVENT_DURATION")
	setString(&cfg.Logging.Level, "MEDSCRIBE_LOG_LEVEL")
	setString(&cfg.Logging.Service, "MEDSCRIBE_LOG_SERVICE")
	setBool(&cfg.Logging.Async, "MEDSCRIBE_LOG_ASYNC")
	setInt(&cfg.Breaker.MaxFailures, "MEDSCRIBE_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Timeout, "MEDSCRIBE_BREAKER_TIMEOUT")
	setDuration(&cfg.Poll.Initial, "MEDSCRIBE_POLL_INITIAL")
	setDuration(&cfg.Poll.Max, "MEDSCRIBE_POLL_MAX")
	setDuration(&cfg.Poll.MaxWait, "MEDSCRIBE_POLL_MAX_WAIT")
	setBool(&cfg.Cache.Enabled, "MEDSCRIBE_CACHE_ENABLED")
	setInt64(&cfg.Cache.L1MaxCost, "MEDSCRIBE_CACHE_L1_MAX_COST")
	setDuration(&cfg.Cache.TTL, "MEDSCRIBE_CACHE_TTL")
	setString(&cfg.Cache.Bucket, "MEDSCRIBE_CACHE_BUCKET")
	setInt(&cfg.Orchestrator.MaxParallel, "MEDSCRIBE_MAX_PARALLEL")
	setDuration(&cfg.Orchestrator.AgentTimeout, "MEDSCRIBE_AGENT_TIMEOUT")
	setBool(&cfg.OTEL.Enabled, "MEDSCRIBE_OTEL_ENABLED")
	setString(&cfg.OTEL.Endpoint, "MEDSCRIBE_OTEL_ENDPOINT")
	setString(&cfg.OTEL.ServiceName, "MEDSCRIBE_OTEL_SERVICE_NAME")
	setBool(&cfg.OTEL.Insecure, "MEDSCRIBE_OTEL_INSECURE")
	setFloat64(&cfg.OTEL.SampleRate, "MEDSCRIBE_OTEL_SAMPLE_RATE")
	setBool(&cfg.MCP.Enabled, "MEDSCRIBE_MCP_ENABLED")
	setString(&cfg.MCP.Port, "MEDSCRIBE_MCP_PORT")
	setBool(&cfg.Auth.Enabled, "MEDSCRIBE_AUTH_ENABLED")
	setStrings(&cfg.Auth.APIKeyHashes, "MEDSCRIBE_API_KEY_HASHES")
}

var (
	knownKinds    = map[string]bool{KindPrescription: true, KindAppointment: true, KindReport: true, KindEvolution: true}
	knownTriggers = map[string]bool{"keyword": true, "entity": true, "intent": true, "always": true}
)

// validate checks required fields and value constraints.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if cfg.Postgres.DSN == "" {
		return errors.New("postgres.dsn is required")
	}
	if cfg.NATS.URL == "" {
		return errors.New("nats.url is required")
	}
	if cfg.Postgres.MaxConns < 1 {
		return errors.New("postgres.max_conns must be >= 1")
	}
	if cfg.Breaker.MaxFailures < 1 {
		return errors.New("breaker.max_failures must be >= 1")
	}
	if cfg.Poll.Initial <= 0 || cfg.Poll.MaxWait <= 0 {
		return errors.New("poll.initial and poll.max_wait must be > 0")
	}
	if cfg.Orchestrator.MaxParallel < 1 {
		return errors.New("orchestrator.max_parallel must be >= 1")
	}
	if cfg.Calendar.EventDuration <= 0 {
		return errors.New("calendar.event_duration must be > 0")
	}
	if cfg.Auth.Enabled && len(cfg.Auth.APIKeyHashes) == 0 {
		return errors.New("auth.api_key_hashes is required when auth is enabled")
	}
	if len(cfg.Agents) == 0 {
		return errors.New("at least one agent is required")
	}

	names := make(map[string]bool, len(cfg.Agents))
	for i := range cfg.Agents {
		if err := validateAgent(&cfg.Agents[i]); err != nil {
			return fmt.Errorf("agents[%d]: %w", i, err)
		}
		if names[cfg.Agents[i].Name] {
			return fmt.Errorf("agents[%d]: duplicate name %q", i, cfg.Agents[i].Name)
		}
		names[cfg.Agents[i].Name] = true
	}
	return nil
}

func validateAgent(a *Agent) error {
	if a.Name == "" {
		return errors.New("name is required")
	}
	if !knownKinds[a.Kind] {
		return fmt.Errorf("unknown kind %q", a.Kind)
	}
	switch a.Match {
	case "", "any", "all":
	default:
		return fmt.Errorf("match must be any or all, got %q", a.Match)
	}
	if len(a.Triggers) == 0 {
		return errors.New("at least one trigger is required")
	}
	for j, t := range a.Triggers {
		if !knownTriggers[t.Type] {
			return fmt.Errorf("triggers[%d]: unknown type %q", j, t.Type)
		}
		if t.Threshold < 0 || t.Threshold > 1 {
			return fmt.Errorf("triggers[%d]: threshold must be within [0,1]", j)
		}
		switch t.Type {
		case "keyword":
			if len(t.Keywords) == 0 || t.Intent == "" {
				return fmt.Errorf("triggers[%d]: keyword trigger needs keywords and intent", j)
			}
		case "entity":
			if len(t.Categories) == 0 {
				return fmt.Errorf("triggers[%d]: entity trigger needs categories", j)
			}
		case "intent":
			if t.Intent == "" {
				return fmt.Errorf("triggers[%d]: intent trigger needs intent", j)
			}
		}
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// setStrings splits a comma-separated env value.
func setStrings(dst *[]string, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	*dst = out
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt32(dst *int32, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			*dst = int32(n)
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
