package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConnection is the connection id under which DATABASE_URL is
// registered, so graphs can query the database that stores them.
const DefaultConnection = "default"

// config holds everything the server reads from its environment.
type config struct {
	DatabaseURL      string
	ListenAddr       string
	ExecutionTimeout time.Duration
	HTTPTimeout      time.Duration
	LogLevel         string
	LogFormat        string

	// Connections are the databases DB blocks may use, by connection id.
	Connections map[string]connection
}

// connection is one entry of the connections file.
type connection struct {
	Driver string `yaml:"driver"` // postgres or sqlite
	DSN    string `yaml:"dsn"`
}

// connectionsFile is the YAML document named by CONNECTIONS_FILE:
//
//	connections:
//	  reporting:
//	    driver: postgres
//	    dsn: postgres://reporting@db/reports
//	  cache:
//	    driver: sqlite
//	    dsn: file:/var/lib/flow/cache.db
type connectionsFile struct {
	Connections map[string]connection `yaml:"connections"`
}

// loadConfig reads the configuration through getenv.
func loadConfig(getenv func(string) string) (*config, error) {
	cfg := &config{
		DatabaseURL: getenv("DATABASE_URL"),
		ListenAddr:  getenv("LISTEN_ADDR"),
		LogLevel:    getenv("LOG_LEVEL"),
		LogFormat:   getenv("LOG_FORMAT"),
		Connections: make(map[string]connection),
	}
	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is not set")
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":3000"
	}

	var err error
	if cfg.ExecutionTimeout, err = duration(getenv, "EXECUTION_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.HTTPTimeout, err = duration(getenv, "HTTP_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}

	if path := getenv("CONNECTIONS_FILE"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read connections file: %w", err)
		}
		if err := parseConnections(raw, cfg.Connections); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	if _, ok := cfg.Connections[DefaultConnection]; !ok {
		cfg.Connections[DefaultConnection] = connection{Driver: "postgres", DSN: cfg.DatabaseURL}
	}
	return cfg, nil
}

func parseConnections(raw []byte, into map[string]connection) error {
	var f connectionsFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return fmt.Errorf("parse connections: %w", err)
	}
	for id, c := range f.Connections {
		switch c.Driver {
		case "postgres", "sqlite":
		default:
			return fmt.Errorf("connection %q: unknown driver %q", id, c.Driver)
		}
		if c.DSN == "" {
			return fmt.Errorf("connection %q: dsn is required", id)
		}
		into[id] = c
	}
	return nil
}

func duration(getenv func(string) string, key string, def time.Duration) (time.Duration, error) {
	v := getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
