package cli

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kuitang/noteflow/internal/db"
	"github.com/kuitang/noteflow/internal/errs"
	"github.com/kuitang/noteflow/internal/notes"
	"github.com/kuitang/noteflow/internal/obs"
)

// checkResult is one doctor check.
type checkResult struct {
	Name   string `json:"name"`
	OK     bool   `json:"ok"`
	Detail string `json:"detail,omitempty"`
}

func newDoctorCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check that the loaded notes match the database indexes",
		Long: `Compare the notes held in memory with the database's folder and tag
lookups, and report the schema version. Exits non-zero when anything
disagrees.`,
		Args: exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd, func(e *env) error {
				results, err := runDoctor(e)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if a.jsonOut {
					if err := writeJSON(out, results); err != nil {
						return err
					}
				} else {
					writeChecks(out, results)
				}

				failed := 0
				for _, r := range results {
					if !r.OK {
						failed++
					}
				}
				if failed > 0 {
					obs.From(e.ctx).Warn("doctor found problems", "failed", failed)
					return errs.New(errs.FailedPrecondition, fmt.Sprintf("%d check(s) failed", failed))
				}
				return nil
			})
		},
	}
}

func runDoctor(e *env) ([]checkResult, error) {
	var results []checkResult

	version, err := e.db.SchemaVersion(e.ctx)
	if err != nil {
		return nil, errs.Wrap(errs.Unavailable, "failed to read schema version", err)
	}
	results = append(results, checkResult{Name: "schema", OK: version > 0, Detail: fmt.Sprintf("version %d", version)})

	results = append(results, checkRows(e))

	folderIDs := []string{""}
	for _, f := range e.store.Folders() {
		folderIDs = append(folderIDs, f.ID)
	}
	for _, id := range folderIDs {
		records, err := e.db.NotesByFolder(e.ctx, id)
		if err != nil {
			return nil, errs.Wrap(errs.Unavailable, "failed to query notes by folder", err)
		}
		name := "folder " + id
		if id == "" {
			name = "folder (root)"
		}
		results = append(results, compareIDs(name, e.store.NotesByFolder(id), records))
	}

	for _, tag := range e.store.Tags() {
		records, err := e.db.NotesByTag(e.ctx, tag)
		if err != nil {
			return nil, errs.Wrap(errs.Unavailable, "failed to query notes by tag", err)
		}
		results = append(results, compareIDs("tag "+tag, e.store.NotesByTag(tag), records))
	}
	return results, nil
}

// checkRows reads every loaded note back by id and reports rows that are
// missing or older than memory.
func checkRows(e *env) checkResult {
	loaded := e.store.Notes()
	var bad []string
	for _, n := range loaded {
		r, err := e.db.GetNote(e.ctx, n.ID)
		if err != nil || r.UpdatedAt != n.UpdatedAt.UnixMilli() || r.Content != n.Content {
			bad = append(bad, n.ID)
		}
	}
	if len(bad) == 0 {
		return checkResult{Name: "rows", OK: true, Detail: fmt.Sprintf("%d note(s)", len(loaded))}
	}
	return checkResult{Name: "rows", Detail: fmt.Sprintf("%d of %d note(s) differ: %s", len(bad), len(loaded), strings.Join(bad, ", "))}
}

// compareIDs checks that memory and storage hold the same note ids.
func compareIDs(name string, inMemory []notes.Note, stored []db.NoteRecord) checkResult {
	mem := make([]string, len(inMemory))
	for i, n := range inMemory {
		mem[i] = n.ID
	}
	disk := make([]string, len(stored))
	for i, r := range stored {
		disk[i] = r.ID
	}
	slices.Sort(mem)
	slices.Sort(disk)

	if slices.Equal(mem, disk) {
		return checkResult{Name: name, OK: true, Detail: fmt.Sprintf("%d note(s)", len(mem))}
	}
	return checkResult{Name: name, Detail: fmt.Sprintf("memory has %d note(s), database has %d", len(mem), len(disk))}
}

func writeChecks(w io.Writer, results []checkResult) {
	for _, r := range results {
		status := "ok"
		if !r.OK {
			status = "FAIL"
		}
		fmt.Fprintf(w, "%-4s  %s  %s\n", status, r.Name, r.Detail)
	}
}

func newConfigCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration with secrets redacted",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			cfg.PrintStartupSummary(cmd.OutOrStdout())
			return nil
		},
	}
}
