package hidelist

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// SnapshotVersion tags exported documents.
const SnapshotVersion = "hush-hidelist/2"

// Snapshot is the export document.
type Snapshot struct {
	Version        string         `json:"version"`
	ExportedAt     time.Time      `json:"exportedAt"`
	BlockedAuthors []string       `json:"blockedAuthors"`
	BlockedItems   []string       `json:"blockedItems"`
	Settings       map[string]any `json:"settings"`
}

// Export returns the user state. Configuration authors are not included.
func (s *Store) Export() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	settings := make(map[string]any, len(s.settings))
	for k, v := range s.settings {
		settings[k] = v
	}
	return Snapshot{
		Version:        SnapshotVersion,
		ExportedAt:     s.now().UTC(),
		BlockedAuthors: sortedKeys(s.authors),
		BlockedItems:   sortedKeys(s.items),
		Settings:       settings,
	}
}

// ExportJSON returns the indented export document.
func (s *Store) ExportJSON() ([]byte, error) {
	return json.MarshalIndent(s.Export(), "", "  ")
}

// ParseSnapshot validates an export document. Absent fields become empty
// collections; blank and non-string array entries are dropped.
func ParseSnapshot(data []byte) (Snapshot, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil || fields == nil {
		return Snapshot{}, fmt.Errorf("%w: not a JSON object", ErrInvalidSnapshot)
	}

	snap := Snapshot{
		BlockedAuthors: []string{},
		BlockedItems:   []string{},
		Settings:       map[string]any{},
	}

	if raw, ok := fields["version"]; ok && !isNull(raw) {
		if err := json.Unmarshal(raw, &snap.Version); err != nil {
			return Snapshot{}, fmt.Errorf("%w: version must be a string", ErrInvalidSnapshot)
		}
	}
	if raw, ok := fields["exportedAt"]; ok && !isNull(raw) {
		if err := json.Unmarshal(raw, &snap.ExportedAt); err != nil {
			return Snapshot{}, fmt.Errorf("%w: exportedAt must be an RFC 3339 time", ErrInvalidSnapshot)
		}
	}

	lists := []struct {
		name string
		dst  *[]string
	}{
		{"blockedAuthors", &snap.BlockedAuthors},
		{"blockedItems", &snap.BlockedItems},
	}
	for _, l := range lists {
		raw, ok := fields[l.name]
		if !ok || isNull(raw) {
			continue
		}
		var arr []any
		if err := json.Unmarshal(raw, &arr); err != nil {
			return Snapshot{}, fmt.Errorf("%w: %s must be an array", ErrInvalidSnapshot, l.name)
		}
		*l.dst = stringsOf(arr)
	}

	if raw, ok := fields["settings"]; ok && !isNull(raw) {
		var settings map[string]any
		if err := json.Unmarshal(raw, &settings); err != nil {
			return Snapshot{}, fmt.Errorf("%w: settings must be an object", ErrInvalidSnapshot)
		}
		snap.Settings = settings
	}
	return snap, nil
}

func isNull(raw json.RawMessage) bool {
	return string(raw) == "null"
}

// Import validates data and, if valid, replaces the user state with it.
// Authors that are also configuration authors are not stored. Persistence
// failures are returned wrapped in ErrPersist after memory is updated.
func (s *Store) Import(data []byte) error {
	snap, err := ParseSnapshot(data)
	if err != nil {
		return err
	}

	authors := make(map[string]struct{}, len(snap.BlockedAuthors))
	items := make(map[string]struct{}, len(snap.BlockedItems))

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range snap.BlockedAuthors {
		a = cleanAuthor(a)
		if a == "" {
			continue
		}
		if _, static := s.static[a]; static {
			continue
		}
		authors[a] = struct{}{}
	}
	for _, id := range snap.BlockedItems {
		items[id] = struct{}{}
	}
	s.authors = authors
	s.items = items
	s.settings = snap.Settings

	s.log.Info("imported", "authors", len(authors), "items", len(items))

	return errors.Join(
		s.persistSet(s.keys.Authors, s.authors),
		s.persistSet(s.keys.Items, s.items),
		s.persistSettings(),
	)
}
