package cache

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/adrg/xdg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func payloadServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/releases/hekate.bin", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("hekate"))
	})
	mux.HandleFunc("/releases/gone.bin", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	})
	s := httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

func TestDownload(t *testing.T) {
	s := payloadServer(t)
	dir := filepath.Join(t.TempDir(), "payloads")

	p, err := download(s.Client(), s.URL+"/releases/hekate.bin", dir, "payload.bin")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "payload.bin"), p)
	data, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, "hekate", string(data))

	p, err = download(s.Client(), s.URL+"/releases/hekate.bin", dir, "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "hekate.bin"), p)
}

func TestDownloadFailures(t *testing.T) {
	s := payloadServer(t)
	dir := t.TempDir()

	_, err := download(s.Client(), s.URL+"/releases/gone.bin", dir, "gone.bin")
	assert.ErrorContains(t, err, "404")
	_, err = os.Stat(filepath.Join(dir, "gone.bin"))
	assert.True(t, os.IsNotExist(err), "nothing should be written on failure")

	for _, name := range []string{"../escape.bin", "a/b.bin", ".."} {
		_, err := download(s.Client(), s.URL+"/releases/hekate.bin", dir, name)
		assert.ErrorIs(t, err, ErrBadFilename, name)
	}
	_, err = download(s.Client(), s.URL+"/", dir, "")
	assert.ErrorIs(t, err, ErrBadFilename)
}

func TestRelocatorPath(t *testing.T) {
	t.Cleanup(xdg.Reload)
	home := t.TempDir()
	t.Setenv("XDG_DATA_HOME", home)
	t.Setenv("XDG_DATA_DIRS", t.TempDir())
	xdg.Reload()

	_, err := RelocatorPath()
	assert.Error(t, err)

	want := filepath.Join(home, "gelee", "intermezzo.bin")
	require.NoError(t, os.MkdirAll(filepath.Dir(want), 0755))
	require.NoError(t, os.WriteFile(want, make([]byte, 92), 0644))
	got, err := RelocatorPath()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
