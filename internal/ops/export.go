package ops

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/hpungsan/playbook/internal/config"
	"github.com/hpungsan/playbook/internal/errors"
	"github.com/hpungsan/playbook/internal/playbook"
)

// ExportSchemaVersion is written in every export header.
const ExportSchemaVersion = "1.0"

// ExportInput contains parameters for the Export operation.
type ExportInput struct {
	Path     string // optional, default: <base>/exports/<industry|all>-<timestamp>.jsonl
	Industry string // optional, case-insensitive filter
}

// ExportOutput contains the result of the Export operation.
type ExportOutput struct {
	Path       string `json:"path"`
	Count      int    `json:"count"`
	ExportedAt int64  `json:"exported_at"`
}

// ExportHeader is the first line of a JSONL export file.
type ExportHeader struct {
	PlaybookExport bool   `json:"_playbook_export"`
	SchemaVersion  string `json:"schema_version"`
	ExportedAt     int64  `json:"exported_at"`
	Owner          string `json:"owner,omitempty"`
}

// Export writes an owner's entries to a JSONL file: one header line followed
// by one row per entry. The file is written to a temp name and renamed into
// place so an existing export is never left half-written.
func Export(ctx context.Context, owner string, entries []playbook.Entry, cfg *config.Config, baseDir string, input ExportInput) (*ExportOutput, error) {
	t := now()
	exportedAt := playbook.NowMillis(t)

	exportPath := input.Path
	if exportPath == "" {
		name := "all"
		if input.Industry != "" {
			name = playbook.FileSlug(input.Industry)
		}
		exportPath = filepath.Join(ExportsDir(baseDir), fmt.Sprintf("%s-%s.jsonl", name, t.Format("2006-01-02T150405")))
	}

	if err := ValidatePath(exportPath, PathCheckWrite, cfg, baseDir); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(exportPath), 0700); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to create export directory: %w", err))
	}

	randBytes := make([]byte, 8)
	if _, err := rand.Read(randBytes); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to generate temp file name: %w", err))
	}
	tempPath := exportPath + "." + hex.EncodeToString(randBytes) + ".tmp"
	file, err := openFileNoFollow(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to create export file: %w", err))
	}

	success := false
	defer func() {
		if file != nil {
			file.Close()
		}
		if !success {
			os.Remove(tempPath)
		}
	}()

	enc := json.NewEncoder(file)
	enc.SetEscapeHTML(false)

	header := ExportHeader{
		PlaybookExport: true,
		SchemaVersion:  ExportSchemaVersion,
		ExportedAt:     exportedAt,
		Owner:          owner,
	}
	if err := enc.Encode(header); err != nil {
		return nil, errors.NewInternal(err)
	}

	count := 0
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, errors.NewInternal(err)
		}
		if input.Industry != "" && !strings.EqualFold(e.Industry, input.Industry) {
			continue
		}
		if err := enc.Encode(playbook.ToRow(owner, e)); err != nil {
			return nil, errors.NewInternal(err)
		}
		count++
	}

	if err := file.Sync(); err != nil {
		return nil, errors.NewInternal(err)
	}
	if err := file.Close(); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to close export file: %w", err))
	}
	file = nil

	if info, err := os.Lstat(exportPath); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return nil, errors.NewInternal(fmt.Errorf("export path is a symlink"))
	}

	// Windows cannot rename over an existing file; fail rather than delete it first.
	if err := os.Rename(tempPath, exportPath); err != nil {
		if runtime.GOOS == "windows" {
			if _, statErr := os.Stat(exportPath); statErr == nil {
				return nil, errors.NewInvalidRequest("export destination already exists; choose a new path or delete the existing file")
			}
		}
		return nil, errors.NewInternal(fmt.Errorf("failed to finalize export: %w", err))
	}

	success = true
	return &ExportOutput{
		Path:       exportPath,
		Count:      count,
		ExportedAt: exportedAt,
	}, nil
}
