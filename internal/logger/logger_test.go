package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitWritesDailyFile(t *testing.T) {
	var console bytes.Buffer
	SetOutput(&console)
	t.Cleanup(func() {
		Close()
		SetOutput(os.Stdout)
	})

	dir := t.TempDir()
	require.NoError(t, Init(dir))

	Info("user %s logged in", "alice@example.com")

	day := time.Now().Format("2006-01-02")
	b, err := os.ReadFile(filepath.Join(dir, "logs", day+".log"))
	require.NoError(t, err)
	assert.Contains(t, string(b), "user alice@example.com logged in")
	assert.Contains(t, console.String(), "user alice@example.com logged in")
}

func TestInitKeepsLogsSuffix(t *testing.T) {
	SetOutput(&bytes.Buffer{})
	t.Cleanup(func() {
		Close()
		SetOutput(os.Stdout)
	})

	dir := filepath.Join(t.TempDir(), "logs")
	require.NoError(t, Init(dir))
	Warn("disk nearly full")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, ".log", filepath.Ext(entries[0].Name()))
}

func TestSetLevelRejectsUnknown(t *testing.T) {
	assert.Error(t, SetLevel("loud"))
	require.NoError(t, SetLevel("info"))
}
