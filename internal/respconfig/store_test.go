package respconfig

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/voiceback/voiceback/internal/models"
)

const validConfig = `{
  "anxiety": [
    {
      "figure": "Seneca",
      "context_lines": [
        "a Stoic philosopher who lived through exile and political turmoil"
      ],
      "quote": "We suffer more often in imagination than in reality.",
      "encouragement_lines": [
        "May his words bring you a moment of calm."
      ]
    }
  ],
  "sadness": [
    {
      "figure": "Marcus Aurelius",
      "context_lines": ["a Roman emperor who wrote his meditations during hard campaigns"],
      "quote": "The soul becomes dyed with the color of its thoughts.",
      "encouragement_lines": ["Let that thought keep you company."]
    }
  ]
}`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "responses.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func newLoadedStore(t *testing.T, content string) *Store {
	t.Helper()
	s, err := NewStore(writeConfig(t, content))
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	if err := s.Load(false); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	return s
}

func TestLoadValidConfiguration(t *testing.T) {
	s := newLoadedStore(t, validConfig)

	if !s.IsLoaded() {
		t.Fatal("IsLoaded = false after successful load")
	}
	if got := s.Emotions(); len(got) != 2 || got[0] != "anxiety" || got[1] != "sadness" {
		t.Errorf("Emotions() = %v, want [anxiety sadness]", got)
	}

	records := s.RecordsFor(models.EmotionAnxiety)
	if len(records) != 1 {
		t.Fatalf("RecordsFor(anxiety) returned %d records, want 1", len(records))
	}
	if records[0].Figure != "Seneca" {
		t.Errorf("figure = %q, want Seneca", records[0].Figure)
	}

	if s.RecordsFor(models.EmotionOverwhelm) != nil {
		t.Error("RecordsFor(overwhelm) should be nil for unconfigured emotion")
	}
}

func TestLoadRejectsInvalidDocuments(t *testing.T) {
	tests := []struct {
		name   string
		doc    string
		reason string
	}{
		{"not json", `{broken`, "parse"},
		{"not a mapping", `["a", "b"]`, "schema"},
		{"empty document", `{}`, "schema"},
		{"empty record list", `{"anxiety": []}`, "schema"},
		{"missing quote field", `{"anxiety": [{"figure": "Seneca", "context_lines": ["x"], "encouragement_lines": ["y"]}]}`, "schema"},
		{"empty context lines", `{"anxiety": [{"figure": "Seneca", "context_lines": [], "quote": "q", "encouragement_lines": ["y"]}]}`, "schema"},
		{"unknown record field", `{"anxiety": [{"figure": "Seneca", "context_lines": ["x"], "quote": "q", "encouragement_lines": ["y"], "extra": 1}]}`, "schema"},
		{"placeholder figure", `{"anxiety": [{"figure": "Unknown", "context_lines": ["x"], "quote": "q", "encouragement_lines": ["y"]}]}`, "content"},
		{"whitespace figure", `{"anxiety": [{"figure": "   ", "context_lines": ["x"], "quote": "q", "encouragement_lines": ["y"]}]}`, "content"},
		{"whitespace emotion key", `{"   ": [{"figure": "Seneca", "context_lines": ["x"], "quote": "q", "encouragement_lines": ["y"]}]}`, "content"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s, err := NewStore(writeConfig(t, tc.doc))
			if err != nil {
				t.Fatalf("NewStore failed: %v", err)
			}
			err = s.Load(false)
			if err == nil {
				t.Fatal("Load accepted invalid document")
			}
			var cfgErr *ConfigurationError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("error type = %T, want *ConfigurationError", err)
			}
			if cfgErr.Reason != tc.reason {
				t.Errorf("reason = %q, want %q", cfgErr.Reason, tc.reason)
			}
			if s.IsLoaded() {
				t.Error("store reports loaded after rejected document")
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	s, err := NewStore(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	err = s.Load(false)
	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) || cfgErr.Reason != "read" {
		t.Fatalf("Load error = %v, want read ConfigurationError", err)
	}
}

func TestLoadUsesCacheWhenUnchanged(t *testing.T) {
	s := newLoadedStore(t, validConfig)

	first := s.LoadedAt()
	if first.IsZero() {
		t.Fatal("LoadedAt is zero after load")
	}

	// Unchanged mtime: Load must be a no-op.
	if err := s.Load(false); err != nil {
		t.Fatalf("cached Load failed: %v", err)
	}
	if !s.LoadedAt().Equal(first) {
		t.Error("cached Load re-read the file")
	}

	// Force bypasses the cache.
	time.Sleep(10 * time.Millisecond)
	if err := s.Reload(); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	if !s.LoadedAt().After(first) {
		t.Error("Reload did not refresh the document")
	}
}

func TestReloadFailurePreservesCache(t *testing.T) {
	path := writeConfig(t, validConfig)
	s, err := NewStore(path)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	if err := s.Load(false); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if err := os.WriteFile(path, []byte(`{broken`), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := s.Reload(); err == nil {
		t.Fatal("Reload accepted broken document")
	}

	if !s.IsLoaded() {
		t.Fatal("cache lost after failed reload")
	}
	records := s.RecordsFor(models.EmotionAnxiety)
	if len(records) != 1 || records[0].Figure != "Seneca" {
		t.Errorf("cached records corrupted after failed reload: %v", records)
	}
}

func TestRecordsForReturnsCopy(t *testing.T) {
	s := newLoadedStore(t, validConfig)

	records := s.RecordsFor(models.EmotionAnxiety)
	records[0].Figure = "tampered"

	fresh := s.RecordsFor(models.EmotionAnxiety)
	if fresh[0].Figure != "Seneca" {
		t.Error("RecordsFor exposed internal slice to mutation")
	}
}

func TestWatcherMarksCacheStale(t *testing.T) {
	path := writeConfig(t, validConfig)
	s, err := NewStore(path, WithWatcher())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	defer s.Close()
	if err := s.Load(false); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	first := s.LoadedAt()

	updated := `{
  "sadness": [
    {
      "figure": "Epictetus",
      "context_lines": ["a former slave who taught that our judgments are our own"],
      "quote": "It's not what happens to you, but how you react to it that matters.",
      "encouragement_lines": ["His calm is available to you too."]
    }
  ]
}`
	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		t.Fatal(err)
	}

	// The watcher delivers asynchronously; poll until Load picks up the
	// change even when the mtime granularity hides it.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if err := s.Load(false); err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if s.LoadedAt().After(first) {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}

	if got := s.RecordsFor(models.EmotionSadness); len(got) != 1 || got[0].Figure != "Epictetus" {
		t.Fatalf("updated document not served after watcher event: %v", got)
	}
	if s.RecordsFor(models.EmotionAnxiety) != nil {
		t.Error("stale anxiety records still served after replacement")
	}
}
