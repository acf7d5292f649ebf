package ops

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/playbook/internal/config"
	"github.com/hpungsan/playbook/internal/db"
	"github.com/hpungsan/playbook/internal/errors"
	"github.com/hpungsan/playbook/internal/playbook"
)

func newRepo(t *testing.T) *db.Repository {
	t.Helper()
	sqlDB, err := db.Init(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	return db.NewRepository(sqlDB, nil)
}

func exportable() []playbook.Entry {
	entries := fixtures()
	for i := range entries {
		entries[i].DateCreated = 1_700_000_000_000 + int64(i)
		entries[i].LastUpdated = entries[i].DateCreated + 10
	}
	return entries
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	require.NoError(t, scanner.Err())
	return lines
}

func TestExport_HeaderAndRows(t *testing.T) {
	base := t.TempDir()
	cfg := config.DefaultConfig()

	out, err := Export(context.Background(), "owner-a", exportable(), cfg, base, ExportInput{})
	require.NoError(t, err)
	assert.Equal(t, 4, out.Count)
	assert.Equal(t, ExportsDir(base), filepath.Dir(out.Path))

	lines := readLines(t, out.Path)
	require.Len(t, lines, 5)

	var header ExportHeader
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &header))
	assert.True(t, header.PlaybookExport)
	assert.Equal(t, ExportSchemaVersion, header.SchemaVersion)
	assert.Equal(t, "owner-a", header.Owner)

	var row playbook.Row
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &row))
	assert.Equal(t, "e1", row.ID)
	assert.Equal(t, "owner-a", row.OwnerID)
	assert.True(t, strings.Contains(lines[1], `"is_published":true`))
	assert.True(t, strings.Contains(lines[2], `"IT & Technology"`) || strings.Contains(lines[2], `"Finance & Banking"`))

	info, err := os.Stat(out.Path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestExport_IndustryFilter(t *testing.T) {
	base := t.TempDir()

	out, err := Export(context.Background(), "owner-a", exportable(), config.DefaultConfig(), base,
		ExportInput{Industry: "finance & banking"})
	require.NoError(t, err)
	assert.Equal(t, 2, out.Count)
	assert.True(t, strings.HasPrefix(filepath.Base(out.Path), "finance--banking-"))
}

func TestExport_RejectsPathOutsideAllowedDirs(t *testing.T) {
	_, err := Export(context.Background(), "owner-a", exportable(), config.DefaultConfig(), t.TempDir(),
		ExportInput{Path: filepath.Join(t.TempDir(), "out.jsonl")})
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest))
}

func TestImport_RoundTrip(t *testing.T) {
	base := t.TempDir()
	cfg := config.DefaultConfig()
	ctx := context.Background()

	out, err := Export(ctx, "owner-a", exportable(), cfg, base, ExportInput{})
	require.NoError(t, err)

	repo := newRepo(t)
	res, err := Import(ctx, repo, "owner-b", cfg, base, ImportInput{Path: out.Path})
	require.NoError(t, err)
	assert.Equal(t, 4, res.Imported)
	assert.Empty(t, res.Errors)

	got, err := repo.ListByOwner(ctx, "owner-b")
	require.NoError(t, err)
	require.Len(t, got, 4)
	assert.Equal(t, "e4", got[0].ID, "newest lastUpdated first")
	assert.Equal(t, int64(1_700_000_000_013), got[0].LastUpdated)
}

func TestImport_ModeErrorStopsOnCollision(t *testing.T) {
	base := t.TempDir()
	cfg := config.DefaultConfig()
	ctx := context.Background()

	out, err := Export(ctx, "owner-a", exportable(), cfg, base, ExportInput{})
	require.NoError(t, err)

	repo := newRepo(t)
	_, err = repo.Create(ctx, "owner-b", exportable()[2])
	require.NoError(t, err)

	res, err := Import(ctx, repo, "owner-b", cfg, base, ImportInput{Path: out.Path, Mode: ImportModeError})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Imported)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "ID_COLLISION", res.Errors[0].Code)

	got, err := repo.ListByOwner(ctx, "owner-b")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func writeDuplicateIDs(t *testing.T, base string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(ExportsDir(base), 0700))
	path := filepath.Join(ExportsDir(base), "dupes.jsonl")
	content := strings.Join([]string{
		`{"_playbook_export":true,"schema_version":"1.0","exported_at":1}`,
		`{"id":"fresh","title":"Only once","status":"Draft","date_created":5,"last_updated":5}`,
		`{"id":"e1","title":"First copy","status":"Draft","date_created":10,"last_updated":20}`,
		`{"id":"e1","title":"Second copy","status":"Draft","date_created":10,"last_updated":30}`,
	}, "\n")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestImport_ModeErrorRejectsRepeatedIDsInFile(t *testing.T) {
	base := t.TempDir()
	ctx := context.Background()
	path := writeDuplicateIDs(t, base)
	repo := newRepo(t)

	res, err := Import(ctx, repo, "owner-b", config.DefaultConfig(), base, ImportInput{Path: path, Mode: ImportModeError})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Imported)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "ID_COLLISION", res.Errors[0].Code)
	assert.Equal(t, "e1", res.Errors[0].ID)
	assert.Equal(t, 4, res.Errors[0].Line)

	got, err := repo.ListByOwner(ctx, "owner-b")
	require.NoError(t, err)
	assert.Empty(t, got, "error mode must not import anything")
}

func TestImport_RepeatedIDsInFileOtherModes(t *testing.T) {
	base := t.TempDir()
	ctx := context.Background()
	path := writeDuplicateIDs(t, base)

	repo := newRepo(t)
	res, err := Import(ctx, repo, "owner-b", config.DefaultConfig(), base, ImportInput{Path: path, Mode: ImportModeReplace})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Imported)
	e1, err := repo.Get(ctx, "owner-b", "e1")
	require.NoError(t, err)
	assert.Equal(t, "Second copy", e1.Title)

	repo = newRepo(t)
	res, err = Import(ctx, repo, "owner-b", config.DefaultConfig(), base, ImportInput{Path: path, Mode: ImportModeRename})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Imported)
	all, err := repo.ListByOwner(ctx, "owner-b")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestImport_ModeReplaceAndRename(t *testing.T) {
	base := t.TempDir()
	cfg := config.DefaultConfig()
	ctx := context.Background()

	out, err := Export(ctx, "owner-a", exportable(), cfg, base, ExportInput{})
	require.NoError(t, err)

	repo := newRepo(t)
	stale := exportable()[0]
	stale.Title = "Stale title"
	_, err = repo.Create(ctx, "owner-b", stale)
	require.NoError(t, err)

	res, err := Import(ctx, repo, "owner-b", cfg, base, ImportInput{Path: out.Path, Mode: ImportModeReplace})
	require.NoError(t, err)
	assert.Equal(t, 4, res.Imported)

	e1, err := repo.Get(ctx, "owner-b", "e1")
	require.NoError(t, err)
	assert.Equal(t, "Cloud cutover failed", e1.Title)

	res, err = Import(ctx, repo, "owner-b", cfg, base, ImportInput{Path: out.Path, Mode: ImportModeRename})
	require.NoError(t, err)
	assert.Equal(t, 4, res.Imported)

	all, err := repo.ListByOwner(ctx, "owner-b")
	require.NoError(t, err)
	assert.Len(t, all, 8)
}

func TestImport_ParseErrors(t *testing.T) {
	base := t.TempDir()
	cfg := config.DefaultConfig()
	ctx := context.Background()
	require.NoError(t, os.MkdirAll(ExportsDir(base), 0700))

	path := filepath.Join(ExportsDir(base), "broken.jsonl")
	content := strings.Join([]string{
		`{"_playbook_export":true,"schema_version":"1.0","exported_at":1}`,
		`{"id":"ok","title":"Good row","status":"approved","date_created":10,"last_updated":20}`,
		`not json`,
		`{"id":"bad","title":"Bad status","status":"Archived","date_created":10,"last_updated":20}`,
	}, "\n")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	repo := newRepo(t)

	res, err := Import(ctx, repo, "owner-b", cfg, base, ImportInput{Path: path})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Imported)
	assert.Len(t, res.Errors, 2)

	res, err = Import(ctx, repo, "owner-b", cfg, base, ImportInput{Path: path, Mode: ImportModeReplace})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Imported)
	assert.Equal(t, 2, res.Skipped)

	got, err := repo.Get(ctx, "owner-b", "ok")
	require.NoError(t, err)
	assert.Equal(t, playbook.StatusApproved, got.Status)
}

func TestImport_InvalidMode(t *testing.T) {
	_, err := Import(context.Background(), newRepo(t), "owner", config.DefaultConfig(), t.TempDir(),
		ImportInput{Path: "x.jsonl", Mode: "merge"})
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest))
}
