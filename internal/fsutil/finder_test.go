package fsutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindDefinitions(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	write := func(rel string) string {
		p := filepath.Join(dir, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
		require.NoError(t, os.WriteFile(p, []byte("output = node.x\n"), 0644))
		return p
	}

	b := write("b.ng.hcl")
	a := write("a.ng.hcl")
	nested := write("sub/c.ng.hcl")
	write("ignored.hcl")
	write("notes.txt")

	t.Run("directory walks recursively and sorts", func(t *testing.T) {
		t.Parallel()
		files, err := FindDefinitions(dir)
		require.NoError(t, err)
		assert.Equal(t, []string{a, b, nested}, files)
	})

	t.Run("single file returns itself", func(t *testing.T) {
		t.Parallel()
		files, err := FindDefinitions(a)
		require.NoError(t, err)
		assert.Equal(t, []string{a}, files)
	})

	t.Run("missing path errors", func(t *testing.T) {
		t.Parallel()
		_, err := FindDefinitions(filepath.Join(dir, "nope"))
		require.Error(t, err)
	})
}
