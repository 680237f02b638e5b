// Package testutil holds rapid generators for note and folder records.
// String generators lean hard on edge cases: storage must keep whatever
// the user typed, byte for byte.
package testutil

import (
	"database/sql"
	"strings"

	"github.com/kuitang/noteflow/internal/db"
	"pgregory.net/rapid"
)

// ArbitraryString covers empty, NUL, control, unicode, quoting and very
// long text as well as rapid's default strings.
func ArbitraryString() *rapid.Generator[string] {
	return rapid.OneOf(
		rapid.String(),
		rapid.Just(""),
		rapid.Just("a\x00b"),
		rapid.StringMatching(`[a-zA-Z0-9 ]{0,100}`),
		rapid.StringMatching(`[\x00-\x1F]{1,10}`),
		markdownText(),
		quoted(),
		unicodeText(),
		whitespace(),
		longText(),
	)
}

// ArbitraryNoteTitle never returns "": the store fills in a default title
// before anything reaches storage.
func ArbitraryNoteTitle() *rapid.Generator[string] {
	return rapid.OneOf(
		rapid.StringN(1, 100, 200),
		rapid.StringMatching(`[a-zA-Z0-9 ]{1,100}`),
		rapid.Just("a\x00b"),
		quoted(),
		unicodeText(),
	)
}

// ArbitraryNoteContent may be empty.
func ArbitraryNoteContent() *rapid.Generator[string] {
	return ArbitraryString()
}

// ArbitraryTags draws tag lists with duplicates and odd characters.
func ArbitraryTags() *rapid.Generator[[]string] {
	return rapid.SliceOfN(rapid.OneOf(
		rapid.StringMatching(`[a-z]{1,12}`),
		unicodeText(),
		quoted(),
	), 0, 6)
}

// ArbitraryID draws opaque record ids. Storage accepts any non-empty key,
// not just the ULIDs the note store produces.
func ArbitraryID() *rapid.Generator[string] {
	return rapid.OneOf(
		rapid.StringMatching(`[0-9A-HJKMNP-TV-Z]{26}`),
		rapid.StringMatching(`[0-9]{13}-[a-z0-9]{9}`),
		rapid.Just("../escape"),
		rapid.Just("id with spaces"),
		unicodeText(),
	)
}

// ArbitraryUnixMillis draws a timestamp between 2000 and 2100.
func ArbitraryUnixMillis() *rapid.Generator[int64] {
	return rapid.Int64Range(946684800000, 4102444800000)
}

// ArbitraryNoteRecord draws a complete note row with the given id.
// UpdatedAt is never before CreatedAt.
func ArbitraryNoteRecord(id string) *rapid.Generator[db.NoteRecord] {
	return rapid.Custom(func(t *rapid.T) db.NoteRecord {
		created := ArbitraryUnixMillis().Draw(t, "created_at")
		return db.NoteRecord{
			ID:         id,
			Title:      ArbitraryNoteTitle().Draw(t, "title"),
			Content:    ArbitraryNoteContent().Draw(t, "content"),
			CanvasData: optional(rapid.SampledFrom([]string{"data:image/png;base64,iVBORw0KGgo="})).Draw(t, "canvas"),
			FolderID:   optional(rapid.SampledFrom([]string{"folder-a", "folder-b"})).Draw(t, "folder"),
			Tags:       ArbitraryTags().Draw(t, "tags"),
			Color:      optional(rapid.SampledFrom([]string{"#6366f1", "#ef4444", "#fef3c7"})).Draw(t, "color"),
			Favorite:   rapid.Bool().Draw(t, "favorite"),
			CreatedAt:  created,
			UpdatedAt:  created + rapid.Int64Range(0, 1000000).Draw(t, "age"),
		}
	})
}

// ArbitraryFolderRecord draws a folder row with the given id and an
// optional parent.
func ArbitraryFolderRecord(id string) *rapid.Generator[db.FolderRecord] {
	return rapid.Custom(func(t *rapid.T) db.FolderRecord {
		return db.FolderRecord{
			ID:        id,
			Name:      ArbitraryNoteTitle().Draw(t, "name"),
			ParentID:  optional(ArbitraryID()).Draw(t, "parent_id"),
			CreatedAt: ArbitraryUnixMillis().Draw(t, "created_at"),
		}
	})
}

// optional draws NULL half the time.
func optional(g *rapid.Generator[string]) *rapid.Generator[sql.NullString] {
	return rapid.Custom(func(t *rapid.T) sql.NullString {
		if !rapid.Bool().Draw(t, "valid") {
			return sql.NullString{}
		}
		return sql.NullString{String: g.Draw(t, "value"), Valid: true}
	})
}

func markdownText() *rapid.Generator[string] {
	return rapid.SampledFrom([]string{
		"# Heading\n\n- item\n- item",
		"```go\nfmt.Println(\"hi\")\n```",
		"---\ntitle: not front matter\n---",
		"[link](javascript:alert(1))",
		"<script>alert('x')</script>",
		"| a | b |\n|---|---|\n| 1 | 2 |",
	})
}

func quoted() *rapid.Generator[string] {
	return rapid.SampledFrom([]string{
		`' OR 1=1 --`,
		`'; DROP TABLE notes; --`,
		`" OR "1"="1`,
		`["not","json"]`,
		`%27%20OR%20%271%27`,
		`\\`,
	})
}

func unicodeText() *rapid.Generator[string] {
	return rapid.SampledFrom([]string{
		"日本語",
		"العربية",
		"🔥🎉💻",
		"Zürich",
		"Москва",
		"​",
		"\ufeff",
		"à",
		"‮reversed‬",
		"👨‍👩‍👧‍👦",
		"line separator",
	})
}

func whitespace() *rapid.Generator[string] {
	return rapid.SampledFrom([]string{
		" ",
		"\t",
		"\n",
		"\r\n",
		"\n\n\n",
		"  padded  ",
		"line1\r\nline2",
		" ",
		"　",
	})
}

func longText() *rapid.Generator[string] {
	return rapid.Custom(func(t *rapid.T) string {
		n := rapid.SampledFrom([]int{1000, 10000, 100000}).Draw(t, "length")
		return strings.Repeat("abcdefghij", n/10)
	})
}
