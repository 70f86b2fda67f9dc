package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"SPECMEM_PROJECT_PATH", "SPECMEM_BATCH_SIZE", "SPECMEM_MAX_WORKERS",
		"SPECMEM_EMBEDDING_SOCKET", "SOCKET_PATH", "DATABASE_URL",
	} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("SPECMEM_PROJECT_PATH", "/srv/myproject")

	cfg := Load()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "/srv/myproject", cfg.ProjectPath)
	assert.Equal(t, 100, cfg.BatchSize)
	assert.Equal(t, 10, cfg.MaxWorkers)
	assert.Contains(t, cfg.DatabaseURL, "postgres://")
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("SPECMEM_PROJECT_PATH", "/srv/myproject")
	t.Setenv("SPECMEM_BATCH_SIZE", "25")
	t.Setenv("SPECMEM_MAX_WORKERS", "4")
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/specmem")

	cfg := Load()
	assert.Equal(t, 25, cfg.BatchSize)
	assert.Equal(t, 4, cfg.MaxWorkers)
	assert.Equal(t, "postgres://u:p@db:5432/specmem", cfg.DatabaseURL)
}

func TestValidateRequiresProjectPath(t *testing.T) {
	clearEnv(t)
	cfg := Load()
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsBadBatchSize(t *testing.T) {
	clearEnv(t)
	t.Setenv("SPECMEM_PROJECT_PATH", "/srv/p")
	t.Setenv("SPECMEM_BATCH_SIZE", "-1")
	assert.Error(t, Load().Validate())
}

func TestExplicitSocketWins(t *testing.T) {
	clearEnv(t)
	t.Setenv("SPECMEM_PROJECT_PATH", "/srv/p")
	t.Setenv("SPECMEM_EMBEDDING_SOCKET", "/custom/embed.sock")

	assert.Equal(t, "/custom/embed.sock", Load().SocketPath)
}

func TestSocketPathEnvFallback(t *testing.T) {
	clearEnv(t)
	t.Setenv("SPECMEM_PROJECT_PATH", "/srv/p")
	t.Setenv("SOCKET_PATH", "/docker/embed.sock")

	assert.Equal(t, "/docker/embed.sock", Load().SocketPath)
}

func TestSocketProbeFindsProjectSocket(t *testing.T) {
	clearEnv(t)
	project := t.TempDir()
	sockDir := filepath.Join(project, "specmem", "sockets")
	require.NoError(t, os.MkdirAll(sockDir, 0o755))
	sock := filepath.Join(sockDir, "embeddings.sock")
	require.NoError(t, os.WriteFile(sock, nil, 0o660))

	t.Setenv("SPECMEM_PROJECT_PATH", project)
	assert.Equal(t, sock, Load().SocketPath)
}

func TestSocketProbeDefaultsToFirstCandidate(t *testing.T) {
	clearEnv(t)
	project := t.TempDir() // no socket anywhere
	t.Setenv("SPECMEM_PROJECT_PATH", project)

	home, _ := os.UserHomeDir()
	if _, err := os.Stat(filepath.Join(home, ".specmem", "sockets", "embeddings.sock")); err == nil {
		t.Skip("a real per-user socket exists on this machine")
	}

	want := filepath.Join(project, "specmem", "sockets", "embeddings.sock")
	assert.Equal(t, want, Load().SocketPath)
}
