package notes

import (
	"database/sql"
	"time"

	"github.com/kuitang/noteflow/internal/db"
)

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func noteToRecord(n Note) db.NoteRecord {
	return db.NoteRecord{
		ID:         n.ID,
		Title:      n.Title,
		Content:    n.Content,
		CanvasData: nullString(n.CanvasData),
		FolderID:   nullString(n.FolderID),
		Tags:       n.Tags,
		Color:      nullString(n.Color),
		Favorite:   n.Favorite,
		CreatedAt:  n.CreatedAt.UnixMilli(),
		UpdatedAt:  n.UpdatedAt.UnixMilli(),
	}
}

func noteFromRecord(r db.NoteRecord) Note {
	tags := r.Tags
	if tags == nil {
		tags = []string{}
	}
	return Note{
		ID:         r.ID,
		Title:      r.Title,
		Content:    r.Content,
		CanvasData: r.CanvasData.String,
		FolderID:   r.FolderID.String,
		Tags:       tags,
		Color:      r.Color.String,
		Favorite:   r.Favorite,
		CreatedAt:  fromMillis(r.CreatedAt),
		UpdatedAt:  fromMillis(r.UpdatedAt),
	}
}

func folderToRecord(f Folder) db.FolderRecord {
	return db.FolderRecord{
		ID:        f.ID,
		Name:      f.Name,
		ParentID:  nullString(f.ParentID),
		CreatedAt: f.CreatedAt.UnixMilli(),
	}
}

func folderFromRecord(r db.FolderRecord) Folder {
	return Folder{
		ID:        r.ID,
		Name:      r.Name,
		ParentID:  r.ParentID.String,
		CreatedAt: fromMillis(r.CreatedAt),
	}
}
