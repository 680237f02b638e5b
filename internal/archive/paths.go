package archive

import (
	"fmt"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"unicode"

	"github.com/kuitang/noteflow/internal/notes"
	"github.com/spf13/afero"
)

const maxSlugLen = 48

// folderPaths maps each folder id to its slash-separated directory path.
// Folders whose parent is missing are placed at the top level. Siblings whose
// names collide get the tail of their id appended.
func folderPaths(folders []notes.Folder) map[string]string {
	byID := make(map[string]notes.Folder, len(folders))
	for _, f := range folders {
		byID[f.ID] = f
	}
	ordered := slices.Clone(folders)
	slices.SortStableFunc(ordered, func(a, b notes.Folder) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})

	paths := make(map[string]string, len(folders))
	taken := make(map[string]bool, len(folders))
	visiting := make(map[string]bool)

	var resolve func(id string) string
	resolve = func(id string) string {
		if p, ok := paths[id]; ok {
			return p
		}
		f := byID[id]
		visiting[id] = true
		parent := ""
		if _, ok := byID[f.ParentID]; ok && !visiting[f.ParentID] {
			parent = resolve(f.ParentID)
		}
		delete(visiting, id)

		p := path.Join(parent, dirName(f.Name))
		if taken[p] {
			p = path.Join(parent, fmt.Sprintf("%s (%s)", dirName(f.Name), shortID(f.ID)))
		}
		taken[p] = true
		paths[id] = p
		return p
	}
	for _, f := range ordered {
		resolve(f.ID)
	}
	return paths
}

// existingFolderPaths is the inverse of folderPaths: directory path to id.
func existingFolderPaths(folders []notes.Folder) map[string]string {
	out := make(map[string]string, len(folders))
	for id, p := range folderPaths(folders) {
		out[p] = id
	}
	return out
}

// dirName makes a folder name safe to use as a single path element.
func dirName(name string) string {
	name = strings.TrimSpace(strings.NewReplacer("/", "-", "\\", "-").Replace(name))
	switch name {
	case "":
		return "folder"
	case ".", "..":
		return "_"
	}
	if strings.HasPrefix(name, ".") {
		name = "_" + name[1:]
	}
	return name
}

// fileBase returns "<slug>-<id tail>" for a note's .md and .png files.
func fileBase(n notes.Note) string {
	return slugify(n.Title) + "-" + shortID(n.ID)
}

func slugify(title string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(title) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(r)
			dash = false
			if b.Len() >= maxSlugLen {
				break
			}
			continue
		}
		dash = true
	}
	if b.Len() == 0 {
		return "note"
	}
	return b.String()
}

func shortID(id string) string {
	const n = 8
	id = strings.ToLower(id)
	if len(id) <= n {
		return id
	}
	return id[len(id)-n:]
}

// writeFileAtomic writes data to a temp file in the target directory and
// renames it into place.
func writeFileAtomic(fs afero.Fs, name string, data []byte) error {
	dir := filepath.Dir(name)
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := afero.TempFile(fs, dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer fs.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := fs.Rename(tmpName, name); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
