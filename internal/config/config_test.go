package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	f, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if f.Model != "llama3.1" {
		t.Errorf("default model = %q", f.Model)
	}
	for _, name := range []string{"filesystem", "memory", "ollama", "weather", "duckduckgo"} {
		if _, ok := f.Servers[name]; !ok {
			t.Errorf("missing predefined server %q", name)
		}
	}
	if f.Servers["ollama"].Kind != "module" {
		t.Errorf("ollama kind = %q, want module", f.Servers["ollama"].Kind)
	}
}

func TestSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	f, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	now := time.Now().UTC().Truncate(time.Second)
	f.Touch("ollama", now)
	f.RecordError("weather")
	f.Model = "mistral"
	if err := f.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.Model != "mistral" {
		t.Errorf("model = %q", got.Model)
	}
	if got.Servers["weather"].ErrorCount != 1 {
		t.Errorf("weather error count = %d, want 1", got.Servers["weather"].ErrorCount)
	}
	lc := got.Servers["ollama"].LastConnected
	if lc == nil || !lc.Equal(now) {
		t.Errorf("ollama last connected = %v, want %v", lc, now)
	}
	if got.LastSaved.IsZero() {
		t.Error("LastSaved not stamped")
	}
}

func TestTouchResetsErrorCount(t *testing.T) {
	f := Defaults()
	f.RecordError("ollama")
	f.RecordError("ollama")
	if f.Servers["ollama"].ErrorCount != 2 {
		t.Fatalf("error count = %d", f.Servers["ollama"].ErrorCount)
	}
	f.Touch("ollama", time.Now())
	if f.Servers["ollama"].ErrorCount != 0 {
		t.Error("Touch must reset the consecutive error count")
	}
}

func TestLoadRejectsMalformedJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("malformed config must not load silently")
	}
}
