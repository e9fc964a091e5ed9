package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gabrielmiguelok/crimedesk/internal/config"
	"github.com/gabrielmiguelok/crimedesk/internal/store"
	"github.com/gabrielmiguelok/crimedesk/pkg/security"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	rootCmd := newRootCmd()
	rootCmd.SetArgs(args)

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)

	err := rootCmd.Execute()
	return out.String(), err
}

func seed(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "crimedesk.db")
	st, err := store.Open(path)
	require.NoError(t, err)
	ctx := context.Background()

	alice, err := st.CreateUser(ctx, "alice", "hash", false)
	require.NoError(t, err)
	_, err = st.CreateReport(ctx, store.Report{UserID: alice.ID, CrimeType: "Theft", Description: "Bike stolen\nfrom the rack", Location: "Downtown"})
	require.NoError(t, err)
	_, err = st.CreateReport(ctx, store.Report{UserID: alice.ID, CrimeType: "Vandalism", Description: "Graffiti"})
	require.NoError(t, err)
	require.NoError(t, st.Close())
	return path
}

func TestNewRootCmd(t *testing.T) {
	rootCmd := newRootCmd()

	assert.Equal(t, "crimedesk", rootCmd.Use)
	assert.Equal(t, "Crime reporting portal", rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestRootCmdHelp(t *testing.T) {
	output, err := run(t, "--help")
	require.NoError(t, err)

	for _, sub := range []string{"serve", "user", "reports", "config", "version"} {
		assert.Contains(t, output, sub)
	}
}

func TestRootCmdVersion(t *testing.T) {
	output, err := run(t, "--version")
	require.NoError(t, err)
	assert.Contains(t, output, "crimedesk version dev")

	output, err = run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "crimedesk dev\n", output)
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "crimedesk.yml")

	output, err := run(t, "config", "init", path)
	require.NoError(t, err)
	assert.Contains(t, output, "Wrote "+path)

	cfg, err := config.Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, config.Default().Addr, cfg.Addr)
	assert.Equal(t, "local", cfg.Uploads.Backend)

	_, err = run(t, "config", "init", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	_, err = run(t, "config", "init", "--force", path)
	require.NoError(t, err)
}

func TestUserCreate(t *testing.T) {
	data := filepath.Join(t.TempDir(), "crimedesk.db")

	output, err := run(t, "user", "create", "root", "--password", "s3cret", "--admin", "--data-file", data)
	require.NoError(t, err)
	assert.Contains(t, output, `Created admin "root"`)

	st, err := store.Open(data)
	require.NoError(t, err)
	defer st.Close()
	u, err := st.UserByName(context.Background(), "root")
	require.NoError(t, err)
	assert.True(t, u.IsAdmin)
	assert.NoError(t, security.CheckPassword(u.PasswordHash, "s3cret"))
}

func TestUserCreateErrors(t *testing.T) {
	data := filepath.Join(t.TempDir(), "crimedesk.db")

	_, err := run(t, "user", "create", "bob", "--data-file", data)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--password")

	_, err = run(t, "user", "create", "bob", "-p", "pw", "--data-file", data)
	require.NoError(t, err)
	_, err = run(t, "user", "create", "bob", "-p", "other", "--data-file", data)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "taken")
}

func TestUserList(t *testing.T) {
	data := seed(t)

	output, err := run(t, "user", "list", "--data-file", data)
	require.NoError(t, err)
	assert.Contains(t, output, "USERNAME")
	assert.Contains(t, output, "alice")
}

func TestReportsList(t *testing.T) {
	data := seed(t)

	output, err := run(t, "reports", "list", "--data-file", data)
	require.NoError(t, err)
	assert.Contains(t, output, "2 total, 2 pending")
	assert.Contains(t, output, "Theft")
	assert.Contains(t, output, "Downtown")
	assert.Contains(t, output, store.DefaultLocation)

	output, err = run(t, "reports", "list", "--data-file", data, "-q", "graffiti")
	require.NoError(t, err)
	assert.Contains(t, output, "1 total")
	assert.Contains(t, output, "Vandalism")
	assert.NotContains(t, output, "Theft")

	output, err = run(t, "reports", "list", "--data-file", data, "-q", "nothing-matches")
	require.NoError(t, err)
	assert.Contains(t, output, "No reports found.")
}

func TestReportsExport(t *testing.T) {
	data := seed(t)

	output, err := run(t, "reports", "export", "--data-file", data)
	require.NoError(t, err)

	records, err := csv.NewReader(strings.NewReader(output)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"id", "user", "crime_type", "description", "location", "status", "timestamp"}, records[0])
	assert.Equal(t, "Bike stolen from the rack", records[1][3])
	assert.Equal(t, "alice", records[2][1])

	file := filepath.Join(t.TempDir(), "out.csv")
	_, err = run(t, "reports", "export", "--data-file", data, "-q", "theft", "-o", file)
	require.NoError(t, err)
	written, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(written), "\n"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
	assert.Equal(t, "a b", truncate("a\n b", 5))
}
