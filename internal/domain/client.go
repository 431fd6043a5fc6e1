package domain

// ClientBookmark is one entry of a snapshot submitted by a browser.
// It is ephemeral and never stored as such.
type ClientBookmark struct {
	ClientID          string
	URL               string // empty entries are ignored by the reconciler
	Title             string
	FolderPath        string
	ClientUpdatedAtMs int64 // client-local edit/add time, 0 when absent
	Deleted           bool
}

// WireBookmark is the bookmark JSON shape shared with the extension.
// Field names are fixed for compatibility.
type WireBookmark struct {
	ID         *string `json:"id,omitempty"`
	URL        *string `json:"url,omitempty"`
	Title      *string `json:"title,omitempty"`
	FolderPath *string `json:"folderPath,omitempty"`
	DateAdded  *int64  `json:"dateAdded,omitempty"`
	Deleted    *bool   `json:"deleted,omitempty"`
}

// Client converts a submitted wire entry, applying defaults for absent fields.
func (w WireBookmark) Client() ClientBookmark {
	return ClientBookmark{
		ClientID:          deref(w.ID),
		URL:               deref(w.URL),
		Title:             deref(w.Title),
		FolderPath:        deref(w.FolderPath),
		ClientUpdatedAtMs: derefInt(w.DateAdded),
		Deleted:           w.Deleted != nil && *w.Deleted,
	}
}

// ClientSnapshot converts a whole submitted payload.
func ClientSnapshot(in []WireBookmark) []ClientBookmark {
	out := make([]ClientBookmark, 0, len(in))
	for _, w := range in {
		out = append(out, w.Client())
	}
	return out
}

// WireSnapshot projects records to the wire shape.
// Always returns a non-nil slice so it encodes as [].
func WireSnapshot(records []BookmarkRecord) []WireBookmark {
	out := make([]WireBookmark, 0, len(records))
	for i := range records {
		out = append(out, records[i].Wire())
	}
	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefInt(v *int64) int64 {
	if v == nil {
		return 0
	}
	return *v
}
