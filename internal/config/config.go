// Package config reads and writes the persisted configuration blob: the set
// of known remote servers keyed by name, plus the preferred chat model. The
// file is plain indented JSON under ~/.mcp-studio so it stays hand-editable.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Server describes one configured remote endpoint.
type Server struct {
	// Kind selects the connector: stdio, sse, http or module.
	Kind string `json:"kind"`

	// Description is free text shown in listings.
	Description string `json:"description,omitempty"`

	// Config is the opaque connector configuration. Known keys depend on
	// the kind: "command" for stdio, "url" for sse/http, "base_url" for
	// module connectors.
	Config map[string]string `json:"config"`

	// LastConnected is the last successful connect, nil if never.
	LastConnected *time.Time `json:"last_connected,omitempty"`

	// ErrorCount counts consecutive failed connects.
	ErrorCount int `json:"error_count"`
}

// File is the whole configuration blob.
type File struct {
	Servers   map[string]Server `json:"servers"`
	Model     string            `json:"model"`
	LastSaved time.Time         `json:"last_saved,omitempty"`

	path string
}

// Dir returns the configuration directory, creating it if needed.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	dir := filepath.Join(home, ".mcp-studio")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create config dir: %w", err)
	}
	return dir, nil
}

// DefaultPath returns the default config file location.
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// ErrorLogPath returns the append-only error log location.
func ErrorLogPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "errors.log"), nil
}

// Defaults returns a fresh configuration with the predefined servers.
func Defaults() *File {
	return &File{
		Model: "llama3.1",
		Servers: map[string]Server{
			"filesystem": {
				Kind:        "stdio",
				Description: "File system access",
				Config:      map[string]string{"command": "npx @modelcontextprotocol/server-filesystem ."},
			},
			"memory": {
				Kind:        "stdio",
				Description: "Memory operations",
				Config:      map[string]string{"command": "npx @modelcontextprotocol/server-memory"},
			},
			"ollama": {
				Kind:        "module",
				Description: "Local LLM models via Ollama",
				Config:      map[string]string{"base_url": "http://localhost:11434"},
			},
			"weather": {
				Kind:        "sse",
				Description: "Weather data",
				Config:      map[string]string{"url": "https://demo.mcp-server.com/weather/sse"},
			},
			"duckduckgo": {
				Kind:        "stdio",
				Description: "Web search",
				Config:      map[string]string{"command": "npx -y @modelcontextprotocol/server-duckduckgo"},
			},
		},
	}
}

// Load reads the blob from path. A missing file yields the defaults bound to
// that path; a malformed file is an error (the blob is hand-editable, so a
// parse failure should surface, not silently reset state).
func Load(path string) (*File, error) {
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		f := Defaults()
		f.path = path
		return f, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var f File
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if f.Servers == nil {
		f.Servers = map[string]Server{}
	}
	if f.Model == "" {
		f.Model = Defaults().Model
	}
	f.path = path
	return &f, nil
}

// Save writes the blob back to the path it was loaded from.
func (f *File) Save() error {
	if f.path == "" {
		return fmt.Errorf("config has no backing path")
	}
	f.LastSaved = time.Now().UTC()
	b, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(f.path, append(b, '\n'), 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Path returns the backing file path.
func (f *File) Path() string { return f.path }

// Touch records a successful connect for name: stamps LastConnected and
// clears the consecutive error count.
func (f *File) Touch(name string, at time.Time) {
	srv, ok := f.Servers[name]
	if !ok {
		return
	}
	srv.LastConnected = &at
	srv.ErrorCount = 0
	f.Servers[name] = srv
}

// RecordError bumps the consecutive error count for name.
func (f *File) RecordError(name string) {
	srv, ok := f.Servers[name]
	if !ok {
		return
	}
	srv.ErrorCount++
	f.Servers[name] = srv
}
