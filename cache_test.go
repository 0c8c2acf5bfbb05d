package restyle

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(i int) *int       { return &i }
func int64Ptr(i int64) *int64 { return &i }

func TestNewResultCache(t *testing.T) {
	cache := NewResultCache("0.2.0", int64Ptr(42))

	assert.Equal(t, "0.2.0", cache.Version())

	_, ok := cache.LastRunDate()
	assert.False(t, ok, "fresh cache should have no last run date")

	_, ok = cache.Findings("unknown.go")
	assert.False(t, ok, "fresh cache should have no findings")
}

func TestCacheFromDocument_InvalidFormat(t *testing.T) {
	docs := map[string]any{
		"sequence": []any{"a", "b"},
		"string":   "not a mapping",
		"number":   42.0,
		"nil":      nil,
	}

	for name, doc := range docs {
		t.Run(name, func(t *testing.T) {
			_, err := CacheFromDocument(doc, "0.2.0", nil)
			assert.ErrorIs(t, err, ErrInvalidCacheFormat)
		})
	}
}

func TestCacheFromDocument_DifferentVersion(t *testing.T) {
	doc := map[string]any{"version": "0.1.0"}

	_, err := CacheFromDocument(doc, "0.2.0", nil)
	assert.ErrorIs(t, err, ErrDifferentVersion)
}

func TestCacheFromDocument_MissingVersion(t *testing.T) {
	_, err := CacheFromDocument(map[string]any{}, "0.2.0", nil)
	assert.ErrorIs(t, err, ErrDifferentVersion)
}

func TestCacheFromDocument_MatchingVersion(t *testing.T) {
	doc := map[string]any{"version": "0.2.0"}

	cache, err := CacheFromDocument(doc, "0.2.0", nil)
	require.NoError(t, err)

	_, ok := cache.LastRunDate()
	assert.False(t, ok, "last run date should be absent")
}

func TestCacheFromDocument_ConfigurationFingerprint(t *testing.T) {
	tests := map[string]struct {
		cached  any
		current *int64
		wantErr bool
	}{
		"both absent":                  {cached: nil, current: nil, wantErr: false},
		"both present and equal":       {cached: int64(42), current: int64Ptr(42), wantErr: false},
		"both present and different":   {cached: int64(41), current: int64Ptr(42), wantErr: true},
		"cached absent, current set":   {cached: nil, current: int64Ptr(42), wantErr: true},
		"cached set, current absent":   {cached: int64(42), current: nil, wantErr: true},
		"cached zero, current absent":  {cached: int64(0), current: nil, wantErr: true},
		"cached non-numeric":           {cached: "42", current: int64Ptr(42), wantErr: true},
		"full 64-bit value preserved":  {cached: int64(-6148914691236517206), current: int64Ptr(-6148914691236517206), wantErr: false},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			doc := map[string]any{"version": "0.2.0"}
			if test.cached != nil {
				doc["configuration_hash"] = test.cached
			}

			_, err := CacheFromDocument(doc, "0.2.0", test.current)
			if test.wantErr {
				assert.ErrorIs(t, err, ErrDifferentConfiguration)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCacheFromDocument_LastRunDate(t *testing.T) {
	t.Run("future date fails", func(t *testing.T) {
		doc := map[string]any{
			"version":       "0.2.0",
			"last_run_date": unixSeconds(time.Now().Add(time.Hour)),
		}

		_, err := CacheFromDocument(doc, "0.2.0", nil)
		assert.ErrorIs(t, err, ErrInconsistentLastRunDate)
	})

	t.Run("past date succeeds and is readable", func(t *testing.T) {
		past := time.Now().Add(-time.Hour).Truncate(time.Second)
		doc := map[string]any{
			"version":       "0.2.0",
			"last_run_date": unixSeconds(past),
		}

		cache, err := CacheFromDocument(doc, "0.2.0", nil)
		require.NoError(t, err)

		lastRun, ok := cache.LastRunDate()
		require.True(t, ok)
		assert.Equal(t, past.Unix(), lastRun.Unix())
	})

	t.Run("absent date succeeds", func(t *testing.T) {
		cache, err := CacheFromDocument(map[string]any{"version": "0.2.0"}, "0.2.0", nil)
		require.NoError(t, err)

		_, ok := cache.LastRunDate()
		assert.False(t, ok)
	})

	t.Run("non-numeric date reads as absent", func(t *testing.T) {
		doc := map[string]any{
			"version":       "0.2.0",
			"last_run_date": "yesterday",
		}

		cache, err := CacheFromDocument(doc, "0.2.0", nil)
		require.NoError(t, err)

		_, ok := cache.LastRunDate()
		assert.False(t, ok)
	})
}

// The validation checks run in a fixed order so a cache that is wrong in
// several ways reports a deterministic reason.
func TestCacheFromDocument_CheckOrder(t *testing.T) {
	t.Run("version before configuration", func(t *testing.T) {
		doc := map[string]any{
			"version":            "0.1.0",
			"configuration_hash": int64(1),
		}

		_, err := CacheFromDocument(doc, "0.2.0", int64Ptr(2))
		assert.ErrorIs(t, err, ErrDifferentVersion)
	})

	t.Run("configuration before last run date", func(t *testing.T) {
		doc := map[string]any{
			"version":            "0.2.0",
			"configuration_hash": int64(1),
			"last_run_date":      unixSeconds(time.Now().Add(time.Hour)),
		}

		_, err := CacheFromDocument(doc, "0.2.0", int64Ptr(2))
		assert.ErrorIs(t, err, ErrDifferentConfiguration)
	})
}

func TestLastRunDate_SetAndGet(t *testing.T) {
	cache := NewResultCache("0.2.0", nil)

	when := time.Unix(1724967000, 0)
	cache.SetLastRunDate(&when)

	got, ok := cache.LastRunDate()
	require.True(t, ok)
	assert.True(t, when.Equal(got), "expected %v, got %v", when, got)

	cache.SetLastRunDate(nil)
	_, ok = cache.LastRunDate()
	assert.False(t, ok, "clearing should make the date absent")
}

func TestFindings_RoundTrip(t *testing.T) {
	cache := NewResultCache("0.2.0", nil)

	findings := []Finding{
		{
			RuleID:    "line_length",
			RuleName:  "Line Length",
			Reason:    "Line should be 100 characters or less",
			Severity:  SeverityWarning,
			File:      "pkg/server.go",
			Line:      intPtr(10),
			Character: intPtr(2),
		},
		{
			RuleID:   "file_length",
			RuleName: "File Length",
			Reason:   "File should contain 400 lines or less",
			Severity: SeverityError,
			File:     "pkg/server.go",
			Line:     intPtr(5),
			// Character deliberately absent
		},
	}

	cache.SetFindings(findings, "pkg/server.go")

	got, ok := cache.Findings("pkg/server.go")
	require.True(t, ok)
	require.Len(t, got, 2)
	assert.Equal(t, findings, got, "findings should round-trip in order")
	assert.Nil(t, got[1].Character, "absent character should stay absent")
}

func TestFindings_ZeroColumnIsNotAbsent(t *testing.T) {
	cache := NewResultCache("0.2.0", nil)

	cache.SetFindings([]Finding{{
		RuleID:    "r",
		RuleName:  "R",
		Reason:    "zero column",
		Severity:  SeverityWarning,
		File:      "a.go",
		Line:      intPtr(1),
		Character: intPtr(0),
	}}, "a.go")

	got, ok := cache.Findings("a.go")
	require.True(t, ok)
	require.Len(t, got, 1)
	require.NotNil(t, got[0].Character)
	assert.Equal(t, 0, *got[0].Character)
}

func TestFindings_AbsentForUnknownFile(t *testing.T) {
	cache := NewResultCache("0.2.0", nil)

	_, ok := cache.Findings("never-seen.go")
	assert.False(t, ok)
}

func TestSetFindings_ReplacesNotMerges(t *testing.T) {
	cache := NewResultCache("0.2.0", nil)

	first := []Finding{{RuleID: "a", RuleName: "A", Reason: "first", Severity: SeverityWarning, File: "x.go"}}
	second := []Finding{{RuleID: "b", RuleName: "B", Reason: "second", Severity: SeverityError, File: "x.go"}}

	cache.SetFindings(first, "x.go")
	cache.SetFindings(second, "x.go")

	got, ok := cache.Findings("x.go")
	require.True(t, ok)
	require.Len(t, got, 1)
	assert.Equal(t, "b", got[0].RuleID)
}

func TestClearFindings(t *testing.T) {
	cache := NewResultCache("0.2.0", nil)

	cache.SetFindings([]Finding{{RuleID: "a", RuleName: "A", Reason: "r", Severity: SeverityWarning, File: "x.go"}}, "x.go")
	cache.ClearFindings("x.go")

	_, ok := cache.Findings("x.go")
	assert.False(t, ok, "cleared file should read as absent")
}

// A cleared entry is persisted as an empty sequence, not removed; caches
// written by existing tool versions use this shape and readers must keep
// treating it as absent.
func TestClearFindings_PersistedShape(t *testing.T) {
	memFs := afero.NewMemMapFs()
	cachePath := "/cache/.restyle.cache"

	cache := NewResultCache("0.2.0", nil)
	cache.SetFindings([]Finding{{RuleID: "a", RuleName: "A", Reason: "r", Severity: SeverityWarning, File: "x.go"}}, "x.go")
	cache.ClearFindings("x.go")
	require.NoError(t, cache.Save(memFs, cachePath))

	data, err := afero.ReadFile(memFs, cachePath)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))

	files, ok := doc["files"].(map[string]any)
	require.True(t, ok)
	entry, present := files["x.go"]
	require.True(t, present, "cleared entry should still exist in the document")
	assert.Equal(t, []any{}, entry)

	// And it reads back as absent after a reload
	loaded, err := LoadResultCache(memFs, cachePath, "0.2.0", nil)
	require.NoError(t, err)
	_, ok = loaded.Findings("x.go")
	assert.False(t, ok)
}

func TestSave_SetsLastRunDate(t *testing.T) {
	memFs := afero.NewMemMapFs()
	cache := NewResultCache("0.2.0", nil)

	before := time.Now()
	require.NoError(t, cache.Save(memFs, "/cache/.restyle.cache"))

	lastRun, ok := cache.LastRunDate()
	require.True(t, ok, "save should record a last run date")
	assert.False(t, lastRun.Before(before.Truncate(time.Second)))
	assert.False(t, lastRun.After(time.Now()))
}

func TestSaveAndLoad_RoundTrip(t *testing.T) {
	memFs := afero.NewMemMapFs()
	cachePath := "/cache/.restyle.cache"
	fingerprint := int64Ptr(-6148914691236517206) // exercise the full int64 range

	cache := NewResultCache("0.2.0", fingerprint)
	findings := []Finding{
		{
			RuleID:    "line_length",
			RuleName:  "Line Length",
			Reason:    "too long",
			Severity:  SeverityWarning,
			File:      "a.go",
			Line:      intPtr(10),
			Character: intPtr(2),
		},
		{
			RuleID:   "file_length",
			RuleName: "File Length",
			Reason:   "too many lines",
			Severity: SeverityError,
			File:     "a.go",
			Line:     intPtr(5),
		},
	}
	cache.SetFindings(findings, "a.go")
	cache.SetFindings(nil, "clean.go")

	require.NoError(t, cache.Save(memFs, cachePath))

	loaded, err := LoadResultCache(memFs, cachePath, "0.2.0", fingerprint)
	require.NoError(t, err)

	got, ok := loaded.Findings("a.go")
	require.True(t, ok)
	assert.Equal(t, findings, got)

	got, ok = loaded.Findings("clean.go")
	require.True(t, ok, "a clean file entry should be readable")
	assert.Empty(t, got)

	_, ok = loaded.LastRunDate()
	assert.True(t, ok, "loaded cache should carry the saved last run date")
}

func TestLoadResultCache_MissingFile(t *testing.T) {
	memFs := afero.NewMemMapFs()

	_, err := LoadResultCache(memFs, "/no/such/cache", "0.2.0", nil)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidCacheFormat)
	assert.NotErrorIs(t, err, ErrDifferentVersion)
}

func TestLoadResultCache_MalformedJSON(t *testing.T) {
	memFs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(memFs, "/cache", []byte("{not json"), 0o644))

	_, err := LoadResultCache(memFs, "/cache", "0.2.0", nil)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidCacheFormat, "decode failures are not validation failures")
}

func TestLoadResultCache_NonMappingDocument(t *testing.T) {
	memFs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(memFs, "/cache", []byte(`["not", "a", "mapping"]`), 0o644))

	_, err := LoadResultCache(memFs, "/cache", "0.2.0", nil)
	assert.ErrorIs(t, err, ErrInvalidCacheFormat)
}

// Records that cannot be fully reconstructed are dropped; a bad line or
// character only loses that field.
func TestFindings_LenientReconstruction(t *testing.T) {
	memFs := afero.NewMemMapFs()
	doc := `{
		"version": "0.2.0",
		"files": {
			"a.go": {"violations": [
				{"line": 1, "character": 2, "severity": "warning", "type": "Line Length", "rule_id": "line_length", "reason": "too long"},
				{"line": null, "character": 3, "severity": "error", "type": "X", "rule_id": "x", "reason": "no line"},
				{"line": "abc", "character": null, "severity": "warning", "type": "X", "rule_id": "x", "reason": "bad line"},
				{"line": 1, "character": 1, "type": "X", "rule_id": "x", "reason": "missing severity"},
				{"line": 1, "character": 1, "severity": "mystery", "type": "X", "rule_id": "x", "reason": "unknown severity"},
				{"line": 1, "character": 1, "severity": "warning", "rule_id": "x", "reason": "missing type"},
				{"line": 1, "character": 1, "severity": "warning", "type": "X", "reason": "missing rule_id"},
				{"line": 1, "character": 1, "severity": "warning", "type": "X", "rule_id": "x"},
				"not a mapping"
			]},
			"cleared.go": [],
			"junk.go": "nope",
			"nolist.go": {"violations": 7}
		}
	}`
	require.NoError(t, afero.WriteFile(memFs, "/cache", []byte(doc), 0o644))

	cache, err := LoadResultCache(memFs, "/cache", "0.2.0", nil)
	require.NoError(t, err)

	findings, ok := cache.Findings("a.go")
	require.True(t, ok)
	require.Len(t, findings, 3, "only fully reconstructable records survive")

	assert.Equal(t, intPtr(1), findings[0].Line)
	assert.Equal(t, intPtr(2), findings[0].Character)
	assert.Equal(t, "a.go", findings[0].File)

	assert.Nil(t, findings[1].Line, "null line reads as absent")
	assert.Equal(t, intPtr(3), findings[1].Character)

	assert.Nil(t, findings[2].Line, "unparseable line reads as absent")
	assert.Nil(t, findings[2].Character)

	for name, wantReadable := range map[string]bool{"cleared.go": false, "junk.go": false, "nolist.go": false} {
		_, ok := cache.Findings(name)
		assert.Equal(t, wantReadable, ok, "entry %s", name)
	}
}

func TestResultCache_ConcurrentAccess(t *testing.T) {
	cache := NewResultCache("0.2.0", nil)
	memFs := afero.NewMemMapFs()

	const workers = 8
	const iterations = 50

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			file := fmt.Sprintf("worker-%d.go", id)
			for i := 0; i < iterations; i++ {
				cache.SetFindings([]Finding{{
					RuleID:   "r",
					RuleName: "R",
					Reason:   fmt.Sprintf("iteration %d", i),
					Severity: SeverityWarning,
					File:     file,
					Line:     intPtr(i + 1),
				}}, file)
				cache.Findings(file)
				now := time.Now()
				cache.SetLastRunDate(&now)
				cache.LastRunDate()
			}
		}(w)
	}
	wg.Wait()

	require.NoError(t, cache.Save(memFs, "/cache"))

	for w := 0; w < workers; w++ {
		file := fmt.Sprintf("worker-%d.go", w)
		findings, ok := cache.Findings(file)
		require.True(t, ok, "file %s should have an entry", file)
		require.Len(t, findings, 1, "replace semantics leave exactly one finding")
		assert.Equal(t, intPtr(iterations), findings[0].Line)
	}
}
