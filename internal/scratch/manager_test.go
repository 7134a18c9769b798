package scratch

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resumia/cv-extractor/internal/domain"
	"github.com/resumia/cv-extractor/internal/observability"
)

func newTestDir(t *testing.T) *Dir {
	t.Helper()
	d, err := NewDir(t.TempDir(), observability.Nop())
	require.NoError(t, err)
	return d
}

func TestAcquire_WritesContent(t *testing.T) {
	d := newTestDir(t)

	res, err := d.Acquire([]byte("pdf bytes"), "cv.pdf")
	require.NoError(t, err)
	defer d.Release(res)

	data, err := os.ReadFile(res.Path)
	require.NoError(t, err)
	assert.Equal(t, "pdf bytes", string(data))
	assert.Contains(t, filepath.Base(res.Path), "cv.pdf")
}

func TestAcquire_ConcurrentSameNameNoCollision(t *testing.T) {
	d := newTestDir(t)

	const n = 50
	paths := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := d.Acquire([]byte{byte(i)}, "cv.pdf")
			if assert.NoError(t, err) {
				paths[i] = res.Path
			}
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool, n)
	for i, p := range paths {
		require.NotEmpty(t, p)
		assert.False(t, seen[p], "path collision: %s", p)
		seen[p] = true

		// No cross-contamination of content between requests.
		data, err := os.ReadFile(p)
		require.NoError(t, err)
		assert.Equal(t, []byte{byte(i)}, data)
	}
}

func TestAcquire_UnwritableRootIsIOError(t *testing.T) {
	root := filepath.Join(t.TempDir(), "scratch")
	d, err := NewDir(root, observability.Nop())
	require.NoError(t, err)
	require.NoError(t, os.RemoveAll(root))

	_, err = d.Acquire([]byte("pdf bytes"), "cv.pdf")
	require.Error(t, err)
	assert.True(t, domain.IsType(err, domain.ErrorTypeIO))
}

func TestRelease_RemovesFile(t *testing.T) {
	d := newTestDir(t)

	res, err := d.Acquire([]byte("x"), "cv.pdf")
	require.NoError(t, err)

	d.Release(res)

	_, statErr := os.Stat(res.Path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestRelease_Idempotent(t *testing.T) {
	d := newTestDir(t)

	res, err := d.Acquire([]byte("x"), "cv.pdf")
	require.NoError(t, err)

	d.Release(res)
	d.Release(res) // second release is a no-op, not an error
}

func TestRelease_MissingFileIsSwallowed(t *testing.T) {
	d := newTestDir(t)

	res, err := d.Acquire([]byte("x"), "cv.pdf")
	require.NoError(t, err)
	require.NoError(t, os.Remove(res.Path))

	d.Release(res)
}

func TestRelease_NilResource(t *testing.T) {
	d := newTestDir(t)
	d.Release(nil)
}

func TestAcquire_SanitizesTraversalNames(t *testing.T) {
	d := newTestDir(t)

	res, err := d.Acquire([]byte("x"), "../../etc/passwd")
	require.NoError(t, err)
	defer d.Release(res)

	assert.Equal(t, d.Root(), filepath.Dir(res.Path))
}

func TestSanitizeName(t *testing.T) {
	assert.Equal(t, "cv.pdf", sanitizeName("cv.pdf"))
	assert.Equal(t, "passwd", sanitizeName("../../etc/passwd"))
	assert.Equal(t, "upload", sanitizeName(""))
	assert.Equal(t, "my_r_sum_.pdf", sanitizeName("my résumé.pdf"))
}
