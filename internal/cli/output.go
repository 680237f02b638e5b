package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/kuitang/noteflow/internal/logutil"
	"github.com/kuitang/noteflow/internal/notes"
)

const (
	timeLayout    = "2006-01-02 15:04"
	maxTitleWidth = 40
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeNoteTable prints notes one per row, newest first.
func writeNoteTable(w io.Writer, list []notes.Note, folderNames map[string]string) error {
	if len(list) == 0 {
		_, err := fmt.Fprintln(w, "No notes found.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "ID\tTITLE\tFOLDER\tTAGS\tFAV\tLINES\tUPDATED\n")
	for _, n := range list {
		fav := ""
		if n.Favorite {
			fav = "*"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			n.ID,
			logutil.TruncateForLog(n.Title, maxTitleWidth),
			folderNames[n.FolderID],
			strings.Join(n.Tags, ","),
			fav,
			notes.CountLines(n.Content),
			n.UpdatedAt.Local().Format(timeLayout),
		)
	}
	return tw.Flush()
}

// writeNote prints one note with a header and numbered content lines.
func writeNote(w io.Writer, n notes.Note, folderName string, start, end int) error {
	fmt.Fprintf(w, "%s\n", n.Title)
	fmt.Fprintf(w, "  id:       %s\n", n.ID)
	if folderName != "" {
		fmt.Fprintf(w, "  folder:   %s\n", folderName)
	}
	if len(n.Tags) > 0 {
		fmt.Fprintf(w, "  tags:     %s\n", strings.Join(n.Tags, ", "))
	}
	if n.Color != "" {
		fmt.Fprintf(w, "  color:    %s\n", n.Color)
	}
	if n.Favorite {
		fmt.Fprintf(w, "  favorite: yes\n")
	}
	if n.CanvasData != "" {
		fmt.Fprintf(w, "  drawing:  %d bytes\n", len(n.CanvasData))
	}
	fmt.Fprintf(w, "  created:  %s\n", formatTime(n.CreatedAt))
	fmt.Fprintf(w, "  updated:  %s\n", formatTime(n.UpdatedAt))

	body, total := notes.FormatWithLineNumbers(n.Content, start, end)
	if total == 0 {
		return nil
	}
	_, err := fmt.Fprintf(w, "\n%s\n", body)
	return err
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.Local().Format(timeLayout)
}

// folderNames maps folder ids to display names; the empty id is the root.
func folderNames(folders []notes.Folder) map[string]string {
	out := make(map[string]string, len(folders))
	for _, f := range folders {
		out[f.ID] = f.Name
	}
	return out
}
