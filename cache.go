package restyle

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/spf13/afero"
)

// Validation errors returned when reconstructing a cache from a persisted
// document. They are mutually exclusive and checked in a fixed order:
// format, then version, then configuration, then last run date. A cache
// that fails any of these is unusable for the current run; callers should
// discard it and start from NewResultCache.
var (
	// ErrInvalidCacheFormat means the document's top level is not a mapping
	ErrInvalidCacheFormat = errors.New("result cache document is not a mapping")
	// ErrDifferentVersion means the cache was written by a different tool version
	ErrDifferentVersion = errors.New("result cache was written by a different version")
	// ErrDifferentConfiguration means the cache was written under a different configuration
	ErrDifferentConfiguration = errors.New("result cache was written under a different configuration")
	// ErrInconsistentLastRunDate means the recorded last run date is in the future
	ErrInconsistentLastRunDate = errors.New("result cache last run date is in the future")
)

// Document field names. These are the on-disk contract; existing cache
// files depend on them, so they must not change.
const (
	cacheKeyVersion     = "version"
	cacheKeyConfigHash  = "configuration_hash"
	cacheKeyLastRunDate = "last_run_date"
	cacheKeyFiles       = "files"
	cacheKeyViolations  = "violations"
)

// ResultCache is a persisted store of per-file findings. Repeated runs
// over unchanged inputs read previous findings back instead of
// re-analyzing the file. Whether a given file is stale is the caller's
// decision; the cache only stores and validates.
//
// All operations are safe for concurrent use. A single mutex guards the
// whole store, so operations are linearizable with respect to each other.
type ResultCache struct {
	mu          sync.Mutex
	version     string
	configHash  *int64
	lastRunDate *float64 // seconds since the Unix epoch
	files       map[string]any
}

// NewResultCache creates a fresh, empty cache for the given tool version
// and configuration fingerprint. A nil fingerprint means the caller runs
// without a configuration. Never fails.
func NewResultCache(version string, configHash *int64) *ResultCache {
	return &ResultCache{
		version:    version,
		configHash: configHash,
		files:      make(map[string]any),
	}
}

// CacheFromDocument reconstructs a cache from a decoded document,
// validating it against the current tool version and configuration
// fingerprint. The document's per-file entries are kept verbatim and
// reinterpreted lazily on read; they are not validated here.
func CacheFromDocument(doc any, version string, configHash *int64) (*ResultCache, error) {
	m, ok := doc.(map[string]any)
	if !ok {
		return nil, ErrInvalidCacheFormat
	}

	cachedVersion, _ := m[cacheKeyVersion].(string)
	if cachedVersion != version {
		return nil, versionMismatch(cachedVersion, version)
	}

	cachedHash := optionalInt64(m[cacheKeyConfigHash])
	if !int64PtrEqual(cachedHash, configHash) {
		return nil, ErrDifferentConfiguration
	}

	lastRun := optionalFloat64(m[cacheKeyLastRunDate])
	if lastRun != nil && *lastRun > unixSeconds(time.Now()) {
		return nil, ErrInconsistentLastRunDate
	}

	files, ok := m[cacheKeyFiles].(map[string]any)
	if !ok {
		files = make(map[string]any)
	}

	return &ResultCache{
		version:     version,
		configHash:  configHash,
		lastRunDate: lastRun,
		files:       files,
	}, nil
}

// LoadResultCache reads a cache file from the given file system, decodes
// it and delegates to CacheFromDocument. Read and decode failures are
// returned as-is; they are distinct from the four validation errors.
func LoadResultCache(fs afero.Fs, path string, version string, configHash *int64) (*ResultCache, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, err
	}

	// Preserve numeric precision: configuration fingerprints use the
	// full int64 range and must not round-trip through float64.
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}

	return CacheFromDocument(doc, version, configHash)
}

// Version returns the tool version the cache was created for.
func (c *ResultCache) Version() string {
	return c.version
}

// LastRunDate returns the recorded time of the last successful save, or
// false if none is recorded.
func (c *ResultCache) LastRunDate() (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.lastRunDate == nil {
		return time.Time{}, false
	}
	return timeFromUnixSeconds(*c.lastRunDate), true
}

// SetLastRunDate records the given time, or clears the field when t is nil.
func (c *ResultCache) SetLastRunDate(t *time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if t == nil {
		c.lastRunDate = nil
		return
	}
	sec := unixSeconds(*t)
	c.lastRunDate = &sec
}

// SetFindings replaces the cached findings for a file with the given
// ordered sequence. Any prior entry for the file is overwritten; there is
// no merging. An empty (or nil) slice is valid and marks the file as
// analyzed and clean.
func (c *ResultCache) SetFindings(findings []Finding, file string) {
	records := make([]any, 0, len(findings))
	for _, f := range findings {
		records = append(records, cacheRecord(f))
	}
	entry := map[string]any{cacheKeyViolations: records}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.files[file] = entry
}

// ClearFindings removes the cached findings for a file; subsequent reads
// return absent. The entry is replaced with an empty sequence rather than
// deleted, which is how caches written by existing versions of the format
// represent a cleared file.
func (c *ResultCache) ClearFindings(file string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.files[file] = []any{}
}

// Findings returns the cached findings for a file in their original
// order. The second return value is false when the file has no readable
// entry: no entry at all, an entry that is not a mapping (e.g. a cleared
// one), or a mapping without a findings sequence.
//
// Individual records that cannot be fully reconstructed are dropped
// rather than failing the whole lookup, so a partially corrupt cache
// degrades instead of breaking the run.
func (c *ResultCache) Findings(file string) ([]Finding, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.files[file].(map[string]any)
	if !ok {
		return nil, false
	}
	raw, ok := entry[cacheKeyViolations].([]any)
	if !ok {
		return nil, false
	}

	findings := make([]Finding, 0, len(raw))
	for _, record := range raw {
		if f, ok := findingFromRecord(record, file); ok {
			findings = append(findings, f)
		}
	}
	return findings, true
}

// Save records the current time as the last run date, serializes the
// whole cache and writes it atomically to the given path, replacing any
// prior content. Serialization happens under the lock; the write to
// storage does not. A failed write leaves the in-memory cache intact.
func (c *ResultCache) Save(fs afero.Fs, path string) error {
	c.mu.Lock()
	now := unixSeconds(time.Now())
	c.lastRunDate = &now
	data, err := json.Marshal(c.document())
	c.mu.Unlock()
	if err != nil {
		return NewCacheError("failed to encode result cache", err)
	}

	if dir := DirPath(path); dir != "" && dir != "." {
		if err := fs.MkdirAll(dir, 0o755); err != nil {
			return NewCacheError("failed to create cache directory", err).WithFile(path)
		}
	}

	tmp := path + ".tmp"
	if err := afero.WriteFile(fs, tmp, data, 0o644); err != nil {
		return NewCacheError("failed to write result cache", err).WithFile(path)
	}
	if err := fs.Rename(tmp, path); err != nil {
		return NewCacheError("failed to replace result cache", err).WithFile(path)
	}
	return nil
}

// document builds the top-level mapping in the persisted layout.
// Callers must hold the lock.
func (c *ResultCache) document() map[string]any {
	doc := map[string]any{
		cacheKeyVersion: c.version,
		cacheKeyFiles:   c.files,
	}
	if c.configHash != nil {
		doc[cacheKeyConfigHash] = *c.configHash
	}
	if c.lastRunDate != nil {
		doc[cacheKeyLastRunDate] = *c.lastRunDate
	}
	return doc
}

// cacheRecord converts a finding to its persisted shape. Absent line and
// character are written as null, not zero; zero is a legal column.
func cacheRecord(f Finding) map[string]any {
	record := map[string]any{
		"severity": string(f.Severity),
		"type":     f.RuleName,
		"rule_id":  f.RuleID,
		"reason":   f.Reason,
	}
	if f.Line != nil {
		record["line"] = *f.Line
	} else {
		record["line"] = nil
	}
	if f.Character != nil {
		record["character"] = *f.Character
	} else {
		record["character"] = nil
	}
	return record
}

// findingFromRecord reconstructs a finding from a raw record. A record
// missing its severity, rule identifier, rule name or reason is
// unreadable and reported as such; an unreadable line or character is
// treated as absent for that field only.
func findingFromRecord(record any, file string) (Finding, bool) {
	m, ok := record.(map[string]any)
	if !ok {
		return Finding{}, false
	}

	rawSeverity, ok := m["severity"].(string)
	if !ok {
		return Finding{}, false
	}
	severity, ok := ParseSeverity(rawSeverity)
	if !ok {
		return Finding{}, false
	}
	ruleName, ok := m["type"].(string)
	if !ok {
		return Finding{}, false
	}
	ruleID, ok := m["rule_id"].(string)
	if !ok {
		return Finding{}, false
	}
	reason, ok := m["reason"].(string)
	if !ok {
		return Finding{}, false
	}

	return Finding{
		RuleID:    ruleID,
		RuleName:  ruleName,
		Reason:    reason,
		Severity:  severity,
		File:      file,
		Line:      optionalInt(m["line"]),
		Character: optionalInt(m["character"]),
	}, true
}

func versionMismatch(got, want string) error {
	return &AppError{
		Type:    ErrorTypeCache,
		Message: "result cache version mismatch",
		Err:     ErrDifferentVersion,
		Details: fmt.Sprintf("cache has version %q, current version is %q", got, want),
	}
}

// int64PtrEqual compares two optional fingerprints. Absent and present
// are never equal, whatever the present value is.
func int64PtrEqual(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// optionalInt interprets a raw document value as an optional integer.
// Values decoded from JSON arrive as json.Number; values set in memory
// arrive as int. Anything else reads as absent.
func optionalInt(v any) *int {
	switch n := v.(type) {
	case int:
		return &n
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return nil
		}
		val := int(i)
		return &val
	case float64:
		val := int(n)
		if float64(val) != n {
			return nil
		}
		return &val
	default:
		return nil
	}
}

func optionalInt64(v any) *int64 {
	switch n := v.(type) {
	case int64:
		return &n
	case int:
		val := int64(n)
		return &val
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return nil
		}
		return &i
	case float64:
		val := int64(n)
		if float64(val) != n {
			return nil
		}
		return &val
	default:
		return nil
	}
}

func optionalFloat64(v any) *float64 {
	switch n := v.(type) {
	case float64:
		return &n
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return nil
		}
		return &f
	case int:
		val := float64(n)
		return &val
	case int64:
		val := float64(n)
		return &val
	default:
		return nil
	}
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

func timeFromUnixSeconds(s float64) time.Time {
	sec := int64(s)
	nsec := int64((s - float64(sec)) * float64(time.Second))
	return time.Unix(sec, nsec)
}
