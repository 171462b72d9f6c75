package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/anniejean/castingdesk/internal/db"
	"github.com/anniejean/castingdesk/internal/models"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	tablePath, dbPath, sizeFilter = "", "", ""
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestClassifyCmd(t *testing.T) {
	out, err := run(t, "classify", "20", "30")
	require.NoError(t, err)
	assert.Equal(t, "6-9 Months\t(primary)\n6-12 Months\n9-12 Months\n", out)

	_, err = run(t, "classify", "abc")
	assert.Error(t, err)
}

func TestTableCmd(t *testing.T) {
	out, err := run(t, "table")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 15)
	assert.True(t, strings.HasPrefix(lines[0], "Preemie"))
	assert.Equal(t, "above 101 lb: 10Y-12Y only", lines[14])
}

func TestBackfillAndChildrenCmd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cli.db")
	require.NoError(t, db.Init(path, zap.NewNop()))
	gdb := db.Conn()
	u := models.User{Email: "p@example.com", PasswordHash: "x"}
	require.NoError(t, gdb.Create(&u).Error)
	c := models.Child{FirstName: "Kid", Gender: "male", UserID: u.ID, Weight: 90, Height: 50}
	require.NoError(t, gdb.Create(&c).Error)

	out, err := run(t, "backfill", "--db", path)
	require.NoError(t, err)
	assert.Contains(t, out, "processed 1, skipped 0, failed 0")

	out, err = run(t, "children", "--db", path, "--size", "10Y-12Y")
	require.NoError(t, err)
	assert.Equal(t, "1\n", out)

	_, err = run(t, "children", "--db", path, "--size", "XXL")
	assert.Error(t, err)
}
