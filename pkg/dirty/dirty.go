// Package dirty remembers which module files were already pruned, keyed by
// content hash and run settings, so incremental runs can skip them.
package dirty

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// DefaultCacheDir is the default directory for storing tracker state.
const DefaultCacheDir = ".gdce/cache"

// DefaultCacheFile is the default filename for tracker state.
const DefaultCacheFile = "pruned.json"

// fileState is what the tracker knows about one file.
type fileState struct {
	Path        string `json:"path"`
	Hash        string `json:"hash"`
	Fingerprint string `json:"fingerprint"`
	Removed     int    `json:"removed"`
	LastSeen    int64  `json:"last_seen"` // Unix timestamp
}

// stateData is the on-disk JSON structure.
type stateData struct {
	Version int         `json:"version"`
	Files   []fileState `json:"files"`
}

// Tracker records the content hash of every file after it was pruned.
// It is safe for concurrent use.
type Tracker struct {
	mu        sync.RWMutex
	files     map[string]fileState
	cacheDir  string
	cacheFile string
	now       func() time.Time
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithCacheDir sets the cache directory.
func WithCacheDir(dir string) Option {
	return func(t *Tracker) {
		t.cacheDir = dir
	}
}

// WithCacheFile sets the cache filename.
func WithCacheFile(file string) Option {
	return func(t *Tracker) {
		t.cacheFile = file
	}
}

// New creates an empty Tracker.
func New(opts ...Option) *Tracker {
	t := &Tracker{
		files:     make(map[string]fileState),
		cacheDir:  DefaultCacheDir,
		cacheFile: DefaultCacheFile,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Open creates a Tracker and loads its cache file if there is one.
func Open(opts ...Option) (*Tracker, error) {
	t := New(opts...)
	if err := t.Load(); err != nil {
		return nil, err
	}
	return t, nil
}

// Fingerprint condenses the settings a result depends on. A file pruned
// under a different fingerprint is treated as changed.
func Fingerprint(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return hex.EncodeToString(sum[:8])
}

// HashFile computes the SHA256 of a file's contents.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open file %s: %w", path, err)
	}
	defer f.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return "", fmt.Errorf("failed to hash file %s: %w", path, err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// Unchanged reports whether path still has the content recorded for it
// under the same fingerprint.
func (t *Tracker) Unchanged(path, fingerprint string) (bool, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false, fmt.Errorf("failed to get absolute path: %w", err)
	}

	t.mu.RLock()
	state, exists := t.files[absPath]
	t.mu.RUnlock()
	if !exists || state.Fingerprint != fingerprint {
		return false, nil
	}

	hash, err := HashFile(absPath)
	if err != nil {
		return false, err
	}
	return hash == state.Hash, nil
}

// Record stores the current content hash of path. Call it after the file
// was pruned and, if rewritten, after the write.
func (t *Tracker) Record(path, fingerprint string, removed int) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to get absolute path: %w", err)
	}
	hash, err := HashFile(absPath)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.files[absPath] = fileState{
		Path:        absPath,
		Hash:        hash,
		Fingerprint: fingerprint,
		Removed:     removed,
		LastSeen:    t.now().Unix(),
	}
	return nil
}

// Forget removes a file from tracking.
func (t *Tracker) Forget(path string) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.files, absPath)
}

// Len returns the number of tracked files.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.files)
}

// Paths returns the tracked absolute paths, sorted.
func (t *Tracker) Paths() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]string, 0, len(t.files))
	for p := range t.files {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func (t *Tracker) cachePath() string {
	return filepath.Join(t.cacheDir, t.cacheFile)
}

// Save persists the state to the cache file.
func (t *Tracker) Save() error {
	if err := os.MkdirAll(t.cacheDir, 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	f, err := os.Create(t.cachePath())
	if err != nil {
		return fmt.Errorf("failed to create cache file: %w", err)
	}
	defer f.Close()

	return t.SaveTo(f)
}

// Load restores the state from the cache file. A missing file leaves the
// tracker empty.
func (t *Tracker) Load() error {
	f, err := os.Open(t.cachePath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to open cache file: %w", err)
	}
	defer f.Close()

	return t.LoadFrom(f)
}

// SaveTo writes the state to w, sorted by path.
func (t *Tracker) SaveTo(w io.Writer) error {
	t.mu.RLock()
	files := make([]fileState, 0, len(t.files))
	for _, state := range t.files {
		files = append(files, state)
	}
	t.mu.RUnlock()
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(stateData{Version: 2, Files: files}); err != nil {
		return fmt.Errorf("failed to encode tracker state: %w", err)
	}
	return nil
}

// LoadFrom replaces the state with the one read from r.
func (t *Tracker) LoadFrom(r io.Reader) error {
	var data stateData
	if err := json.NewDecoder(r).Decode(&data); err != nil {
		return fmt.Errorf("failed to decode tracker state: %w", err)
	}

	files := make(map[string]fileState, len(data.Files))
	for _, state := range data.Files {
		files[state.Path] = state
	}

	t.mu.Lock()
	t.files = files
	t.mu.Unlock()
	return nil
}
