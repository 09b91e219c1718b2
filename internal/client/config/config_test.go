package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	c := &Config{}
	c.LoadDefaults()
	assert.Equal(t, "http://127.0.0.1:8080", c.ServerURL)
	assert.Equal(t, 10*time.Second, c.RequestTimeout)
	assert.NotEmpty(t, c.SessionFile)
}

func TestLoadConfig_Precedence(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	path := filepath.Join(t.TempDir(), "cli.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"server_url":"http://file:1","request_timeout":"3s","session_file":"/tmp/s.json"}`), 0o600))

	os.Args = []string{"cli", "-c", path, "-a", "http://flag:2", "whoami"}
	got := LoadConfig()

	want := &Config{ServerURL: "http://flag:2", RequestTimeout: 3 * time.Second, SessionFile: "/tmp/s.json"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestParseJson_PartialAndErrors(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	dir := t.TempDir()
	partial := filepath.Join(dir, "partial.json")
	require.NoError(t, os.WriteFile(partial, []byte(`{"server_url":"http://only"}`), 0o600))

	c := &Config{}
	c.LoadDefaults()
	os.Args = []string{"cli", "-config", partial}
	parseJson(c)
	assert.Equal(t, "http://only", c.ServerURL)
	assert.Equal(t, 10*time.Second, c.RequestTimeout)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{`), 0o600))
	os.Args = []string{"cli", "-c", bad}
	assert.Panics(t, func() { parseJson(&Config{}) })

	os.Args = []string{"cli", "-c", filepath.Join(dir, "missing.json")}
	assert.Panics(t, func() { parseJson(&Config{}) })
}

func TestParseFlags(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	c := &Config{}
	c.LoadDefaults()
	os.Args = []string{"cli", "login", "-t", "7", "-f", "/x/s.json"}
	parseFlags(c)
	assert.Equal(t, 7*time.Second, c.RequestTimeout)
	assert.Equal(t, "/x/s.json", c.SessionFile)

	os.Args = []string{"cli", "-t", "soon"}
	assert.Panics(t, func() { parseFlags(&Config{}) })
}
