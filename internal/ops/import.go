package ops

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hpungsan/playbook/internal/config"
	"github.com/hpungsan/playbook/internal/errors"
	"github.com/hpungsan/playbook/internal/playbook"
	"github.com/hpungsan/playbook/internal/store"
)

// ImportMode controls collision behavior during import.
type ImportMode string

const (
	ImportModeError   ImportMode = "error"   // fail on any collision, importing nothing
	ImportModeReplace ImportMode = "replace" // overwrite on collision
	ImportModeRename  ImportMode = "rename"  // assign a fresh id on collision
)

// maxImportLine bounds a single JSONL record.
const maxImportLine = 1 << 20

// ImportInput contains parameters for the Import operation.
type ImportInput struct {
	Path string     // required
	Mode ImportMode // default: error
}

// ImportOutput contains the result of the Import operation.
type ImportOutput struct {
	Imported int           `json:"imported"`
	Skipped  int           `json:"skipped"`
	Errors   []ImportError `json:"errors"`
}

// ImportError describes one rejected line.
type ImportError struct {
	Line    int    `json:"line,omitempty"`
	ID      string `json:"id,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type importRecord struct {
	line int
	row  playbook.Row
}

// exportLine decodes either a header or a row.
type exportLine struct {
	playbook.Row
	PlaybookExport bool `json:"_playbook_export"`
}

// Import reads a JSONL export into owner's entries through repo. Rows are
// re-owned by owner whatever owner_id the file carries. Callers holding a
// Store for owner should reload it afterwards.
func Import(ctx context.Context, repo store.Repository, owner string, cfg *config.Config, baseDir string, input ImportInput) (*ImportOutput, error) {
	if input.Mode == "" {
		input.Mode = ImportModeError
	}
	if input.Mode != ImportModeError && input.Mode != ImportModeReplace && input.Mode != ImportModeRename {
		return nil, errors.NewInvalidRequest("mode must be one of: error, replace, rename")
	}
	if err := ValidatePath(input.Path, PathCheckRead, cfg, baseDir); err != nil {
		return nil, err
	}

	file, err := openFileNoFollowRead(input.Path)
	if err != nil {
		if _, ok := err.(*errors.PlaybookError); ok {
			return nil, err
		}
		return nil, errors.NewInternal(fmt.Errorf("failed to open import file: %w", err))
	}
	defer file.Close()

	records, parseErrors := parseExport(file)

	if input.Mode == ImportModeError && len(parseErrors) > 0 {
		return &ImportOutput{Errors: parseErrors}, nil
	}

	out := &ImportOutput{Errors: []ImportError{}}
	out.Errors = append(out.Errors, parseErrors...)
	out.Skipped = len(parseErrors)

	// Collisions include ids repeated within the file itself.
	if input.Mode == ImportModeError {
		seen := make(map[string]int, len(records))
		for _, rec := range records {
			if first, dup := seen[rec.row.ID]; dup {
				out.Errors = append(out.Errors, collisionError(rec,
					fmt.Sprintf("entry id %q repeats line %d", rec.row.ID, first)))
				return out, nil
			}
			seen[rec.row.ID] = rec.line

			exists, err := entryExists(ctx, repo, owner, rec.row.ID)
			if err != nil {
				return nil, err
			}
			if exists {
				out.Errors = append(out.Errors, collisionError(rec,
					fmt.Sprintf("entry with id %q already exists", rec.row.ID)))
				return out, nil
			}
		}
	}

	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return nil, errors.NewInternal(err)
		}

		e := rec.row.ToEntry()
		exists, err := entryExists(ctx, repo, owner, e.ID)
		if err != nil {
			return nil, err
		}

		switch {
		case !exists:
			_, err = repo.Create(ctx, owner, e)
		case input.Mode == ImportModeReplace:
			_, err = repo.Update(ctx, owner, e.ID, fullPatch(e))
		case input.Mode == ImportModeRename:
			e.ID, err = playbook.NewID()
			if err == nil {
				_, err = repo.Create(ctx, owner, e)
			}
		default:
			out.Errors = append(out.Errors, collisionError(rec,
				fmt.Sprintf("entry with id %q already exists", rec.row.ID)))
			out.Skipped++
			continue
		}
		if err != nil {
			out.Errors = append(out.Errors, ImportError{
				Line:    rec.line,
				ID:      rec.row.ID,
				Code:    string(errors.As(err).Code),
				Message: err.Error(),
			})
			out.Skipped++
			continue
		}
		out.Imported++
	}

	return out, nil
}

func collisionError(rec importRecord, msg string) ImportError {
	return ImportError{Line: rec.line, ID: rec.row.ID, Code: "ID_COLLISION", Message: msg}
}

func entryExists(ctx context.Context, repo store.Repository, owner, id string) (bool, error) {
	_, err := repo.Get(ctx, owner, id)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, errors.ErrNotFound) {
		return false, nil
	}
	return false, err
}

// fullPatch writes every editable field of e, keeping its timestamps.
func fullPatch(e playbook.Entry) playbook.Patch {
	return playbook.Patch{
		Title:               &e.Title,
		Industry:            &e.Industry,
		Category:            &e.Category,
		Status:              &e.Status,
		Summary:             &e.Summary,
		RootCause:           &e.RootCause,
		Impact:              &e.Impact,
		Recommendation:      &e.Recommendation,
		DoList:              &e.DoList,
		DontList:            &e.DontList,
		PreventionChecklist: &e.PreventionChecklist,
		Tags:                &e.Tags,
		IsPublished:         &e.IsPublished,
		LastUpdated:         &e.LastUpdated,
	}
}

// parseExport reads records, skipping the header and collecting per-line errors.
func parseExport(r io.Reader) ([]importRecord, []ImportError) {
	var records []importRecord
	var parseErrors []ImportError

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxImportLine)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var rec exportLine
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			parseErrors = append(parseErrors, ImportError{
				Line:    lineNum,
				Code:    "PARSE_ERROR",
				Message: fmt.Sprintf("invalid JSON: %v", err),
			})
			continue
		}
		if rec.PlaybookExport {
			continue
		}

		if msg := checkRow(rec.Row); msg != "" {
			parseErrors = append(parseErrors, ImportError{
				Line:    lineNum,
				ID:      rec.ID,
				Code:    "INVALID_RECORD",
				Message: msg,
			})
			continue
		}
		status, _ := playbook.ParseStatus(rec.Status)
		rec.Status = string(status)
		records = append(records, importRecord{line: lineNum, row: rec.Row})
	}

	if err := scanner.Err(); err != nil {
		parseErrors = append(parseErrors, ImportError{
			Line:    lineNum,
			Code:    "READ_ERROR",
			Message: fmt.Sprintf("failed to read file: %v", err),
		})
	}

	return records, parseErrors
}

func checkRow(row playbook.Row) string {
	switch {
	case row.ID == "":
		return "missing id field"
	case strings.TrimSpace(row.Title) == "":
		return "missing title field"
	case row.DateCreated <= 0 || row.LastUpdated < row.DateCreated:
		return "invalid timestamps"
	}
	if _, ok := playbook.ParseStatus(row.Status); !ok {
		return fmt.Sprintf("unknown status %q", row.Status)
	}
	return ""
}
