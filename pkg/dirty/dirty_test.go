package dirty

import (
	"bytes"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeModule(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestTracker_UnknownFileIsChanged(t *testing.T) {
	path := writeModule(t, t.TempDir(), "a.yaml", "name: a")

	tracker := New()
	same, err := tracker.Unchanged(path, "fp")
	require.NoError(t, err)
	assert.False(t, same)
	assert.Equal(t, 0, tracker.Len())
}

func TestTracker_RecordThenUnchanged(t *testing.T) {
	path := writeModule(t, t.TempDir(), "a.yaml", "name: a")

	tracker := New()
	require.NoError(t, tracker.Record(path, "fp", 2))

	tests := []struct {
		name        string
		fingerprint string
		content     string
		want        bool
	}{
		{name: "same content and settings", fingerprint: "fp", want: true},
		{name: "settings changed", fingerprint: "other", want: false},
		{name: "content changed", fingerprint: "fp", content: "name: b", want: false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.content != "" {
				require.NoError(t, os.WriteFile(path, []byte(tc.content), 0644))
			}
			same, err := tracker.Unchanged(path, tc.fingerprint)
			require.NoError(t, err)
			assert.Equal(t, tc.want, same)
		})
	}
}

func TestTracker_UnchangedMissingFile(t *testing.T) {
	dir := t.TempDir()
	path := writeModule(t, dir, "gone.yaml", "x")

	tracker := New()
	require.NoError(t, tracker.Record(path, "fp", 0))
	require.NoError(t, os.Remove(path))

	_, err := tracker.Unchanged(path, "fp")
	assert.Error(t, err)

	tracker.Forget(path)
	assert.Equal(t, 0, tracker.Len())
}

func TestTracker_SaveAndOpen(t *testing.T) {
	dir := t.TempDir()
	cacheDir := filepath.Join(dir, "cache")
	a := writeModule(t, dir, "a.yaml", "name: a")
	b := writeModule(t, dir, "b.json", `{"name":"b"}`)

	tracker := New(WithCacheDir(cacheDir), WithCacheFile("state.json"))
	tracker.now = func() time.Time { return time.Unix(1700000000, 0) }
	require.NoError(t, tracker.Record(b, "fp", 1))
	require.NoError(t, tracker.Record(a, "fp", 0))
	require.NoError(t, tracker.Save())

	loaded, err := Open(WithCacheDir(cacheDir), WithCacheFile("state.json"))
	require.NoError(t, err)
	assert.Equal(t, []string{a, b}, loaded.Paths())

	same, err := loaded.Unchanged(a, "fp")
	require.NoError(t, err)
	assert.True(t, same)
}

func TestTracker_OpenWithoutCache(t *testing.T) {
	tracker, err := Open(WithCacheDir(filepath.Join(t.TempDir(), "none")))
	require.NoError(t, err)
	assert.Equal(t, 0, tracker.Len())
}

func TestTracker_SaveToLoadFrom(t *testing.T) {
	path := writeModule(t, t.TempDir(), "a.gdm", "\x81")

	tracker := New()
	require.NoError(t, tracker.Record(path, "fp", 3))

	var buf bytes.Buffer
	require.NoError(t, tracker.SaveTo(&buf))
	assert.Contains(t, buf.String(), `"removed": 3`)

	other := New()
	require.NoError(t, other.LoadFrom(&buf))
	assert.Equal(t, tracker.Paths(), other.Paths())

	assert.Error(t, other.LoadFrom(bytes.NewBufferString("not json")))
}

func TestTracker_ConcurrentRecord(t *testing.T) {
	dir := t.TempDir()
	tracker := New()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		path := writeModule(t, dir, filepath.Base(t.Name())+string(rune('a'+i))+".yaml", "x")
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, tracker.Record(path, "fp", 0))
		}()
	}
	wg.Wait()
	assert.Equal(t, 16, tracker.Len())
}

func TestFingerprint(t *testing.T) {
	assert.Equal(t, Fingerprint("main", "fifo"), Fingerprint("main", "fifo"))
	assert.NotEqual(t, Fingerprint("main", "fifo"), Fingerprint("mainfifo"))
	assert.Len(t, Fingerprint(), 16)
}
