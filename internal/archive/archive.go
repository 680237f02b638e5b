// Package archive exports notes to a directory of Markdown files with YAML
// front matter and imports them back. Folders become directories and each
// drawing is written as a PNG next to its note.
package archive

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kuitang/noteflow/internal/canvas"
	"github.com/kuitang/noteflow/internal/notes"
	"github.com/kuitang/noteflow/internal/obs"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// ErrNoFrontMatter is returned for a .md file that does not start with a
// front matter block.
var ErrNoFrontMatter = errors.New("archive: missing front matter")

// FrontMatter is the YAML header of an exported note.
type FrontMatter struct {
	ID        string    `yaml:"id"`
	Title     string    `yaml:"title"`
	Tags      []string  `yaml:"tags,omitempty"`
	Folder    string    `yaml:"folder,omitempty"`
	Color     string    `yaml:"color,omitempty"`
	Favorite  bool      `yaml:"favorite,omitempty"`
	CreatedAt time.Time `yaml:"created_at"`
	UpdatedAt time.Time `yaml:"updated_at"`
	Canvas    string    `yaml:"canvas,omitempty"`
}

// Source is what Export reads. *notes.Store implements it.
type Source interface {
	Notes() []notes.Note
	Folders() []notes.Folder
}

// Sink is what Import writes to. *notes.Store implements it.
type Sink interface {
	Folders() []notes.Folder
	CreateFolder(ctx context.Context, name, parentID string) (*notes.Folder, error)
	CreateNote(ctx context.Context, params notes.NewNote) (*notes.Note, error)
	UpdateNote(ctx context.Context, id string, patch notes.Patch, isAutoSave bool) (*notes.Note, error)
}

// Report summarizes an export or import.
type Report struct {
	Notes    int
	Folders  int
	Drawings int
	// Skipped lists files Import could not read, relative to the archive root.
	Skipped []string
}

// Archiver moves notes between a store and a filesystem.
type Archiver struct {
	fs afero.Fs
}

// New returns an Archiver over fs.
func New(fs afero.Fs) *Archiver {
	return &Archiver{fs: fs}
}

// Export writes every folder and note in src under dir.
func (a *Archiver) Export(ctx context.Context, dir string, src Source) (Report, error) {
	var report Report
	log := logger(ctx)

	folders := src.Folders()
	paths := folderPaths(folders)
	for _, f := range folders {
		if err := a.fs.MkdirAll(filepath.Join(dir, filepath.FromSlash(paths[f.ID])), 0o755); err != nil {
			return report, fmt.Errorf("failed to create folder directory: %w", err)
		}
		report.Folders++
	}

	for _, n := range src.Notes() {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		folderPath := paths[n.FolderID]
		base := fileBase(n)
		fm := FrontMatter{
			ID:        n.ID,
			Title:     n.Title,
			Tags:      n.Tags,
			Folder:    folderPath,
			Color:     n.Color,
			Favorite:  n.Favorite,
			CreatedAt: n.CreatedAt.UTC(),
			UpdatedAt: n.UpdatedAt.UTC(),
		}
		noteDir := filepath.Join(dir, filepath.FromSlash(folderPath))

		if n.CanvasData != "" {
			png, err := canvas.DecodeDataURL(n.CanvasData)
			if err != nil {
				log.Warn("skipping undecodable drawing", "note_id", n.ID, "error", err)
			} else {
				fm.Canvas = base + ".png"
				if err := writeFileAtomic(a.fs, filepath.Join(noteDir, fm.Canvas), png); err != nil {
					return report, err
				}
				report.Drawings++
			}
		}

		doc, err := MarshalNote(fm, n.Content)
		if err != nil {
			return report, fmt.Errorf("note %s: %w", n.ID, err)
		}
		if err := writeFileAtomic(a.fs, filepath.Join(noteDir, base+".md"), doc); err != nil {
			return report, err
		}
		report.Notes++
	}
	log.Info("archive exported", "dir", dir, "notes", report.Notes, "folders", report.Folders, "drawings", report.Drawings)
	return report, nil
}

// Import reads every .md file under dir into dst. Directories become folders
// (reusing existing folders with the same name and parent). Imported notes
// get new ids and timestamps. Unreadable files are skipped and reported.
func (a *Archiver) Import(ctx context.Context, dir string, dst Sink) (Report, error) {
	var report Report
	log := logger(ctx)
	folderIDs := existingFolderPaths(dst.Folders())

	ensureFolder := func(rel string) (string, error) {
		if rel == "" || rel == "." {
			return "", nil
		}
		return ensureFolderPath(ctx, dst, folderIDs, rel, &report)
	}

	err := afero.Walk(a.fs, dir, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if info.IsDir() {
			if strings.HasPrefix(info.Name(), ".") && rel != "." {
				return filepath.SkipDir
			}
			_, err := ensureFolder(rel)
			return err
		}
		if !strings.HasSuffix(path, ".md") {
			return nil
		}

		params, favorite, err := a.readNote(log, path)
		if err != nil {
			log.Warn("skipping unreadable note", "path", rel, "error", err)
			report.Skipped = append(report.Skipped, rel)
			return nil
		}
		if params.FolderID, err = ensureFolder(filepath.ToSlash(filepath.Dir(filepath.FromSlash(rel)))); err != nil {
			return err
		}
		n, err := dst.CreateNote(ctx, params)
		if err != nil {
			return fmt.Errorf("import %s: %w", rel, err)
		}
		if favorite {
			if _, err := dst.UpdateNote(ctx, n.ID, notes.Patch{Favorite: notes.Bool(true)}, false); err != nil {
				return fmt.Errorf("import %s: %w", rel, err)
			}
		}
		if params.CanvasData != "" {
			report.Drawings++
		}
		report.Notes++
		return nil
	})
	if err == nil {
		log.Info("archive imported", "dir", dir, "notes", report.Notes, "folders", report.Folders, "skipped", len(report.Skipped))
	}
	return report, err
}

func logger(ctx context.Context) *slog.Logger {
	return obs.From(ctx).With("pkg", "archive")
}

func (a *Archiver) readNote(log *slog.Logger, path string) (notes.NewNote, bool, error) {
	data, err := afero.ReadFile(a.fs, path)
	if err != nil {
		return notes.NewNote{}, false, err
	}
	fm, content, err := UnmarshalNote(data)
	if err != nil {
		return notes.NewNote{}, false, err
	}

	params := notes.NewNote{
		Title:   fm.Title,
		Content: content,
		Tags:    fm.Tags,
		Color:   fm.Color,
	}
	if fm.Canvas != "" {
		png, err := afero.ReadFile(a.fs, filepath.Join(filepath.Dir(path), filepath.Base(fm.Canvas)))
		if err != nil {
			log.Warn("drawing missing, importing note without it", "path", path, "error", err)
		} else {
			params.CanvasData = canvas.DataURLPrefix + base64.StdEncoding.EncodeToString(png)
		}
	}
	return params, fm.Favorite, nil
}

// ensureFolderPath creates every missing folder along rel.
func ensureFolderPath(ctx context.Context, dst Sink, ids map[string]string, rel string, report *Report) (string, error) {
	if id, ok := ids[rel]; ok {
		return id, nil
	}
	parentID := ""
	if parent := filepath.ToSlash(filepath.Dir(filepath.FromSlash(rel))); parent != "." {
		var err error
		if parentID, err = ensureFolderPath(ctx, dst, ids, parent, report); err != nil {
			return "", err
		}
	}
	f, err := dst.CreateFolder(ctx, filepath.Base(filepath.FromSlash(rel)), parentID)
	if err != nil {
		return "", err
	}
	ids[rel] = f.ID
	report.Folders++
	return f.ID, nil
}

// MarshalNote renders a note file: front matter between --- lines, a blank
// line, then the content.
func MarshalNote(fm FrontMatter, content string) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("---\n")
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(fm); err != nil {
		return nil, fmt.Errorf("failed to encode front matter: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode front matter: %w", err)
	}
	buf.WriteString("---\n\n")
	buf.WriteString(content)
	return buf.Bytes(), nil
}

// UnmarshalNote splits a note file into its front matter and content.
func UnmarshalNote(data []byte) (FrontMatter, string, error) {
	var fm FrontMatter
	data = bytes.ReplaceAll(data, []byte("\r\n"), []byte("\n"))
	rest, ok := bytes.CutPrefix(data, []byte("---\n"))
	if !ok {
		return fm, "", ErrNoFrontMatter
	}
	header, body, ok := bytes.Cut(rest, []byte("\n---\n"))
	if !ok {
		if header, ok = bytes.CutSuffix(rest, []byte("\n---")); !ok {
			return fm, "", ErrNoFrontMatter
		}
		body = nil
	}
	if err := yaml.Unmarshal(header, &fm); err != nil {
		return fm, "", fmt.Errorf("failed to parse front matter: %w", err)
	}
	content, _ := bytes.CutPrefix(body, []byte("\n"))
	return fm, string(content), nil
}
