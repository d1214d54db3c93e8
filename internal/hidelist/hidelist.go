// Package hidelist is the durable record of blocked authors and blocked
// items. Reads are served from memory; every mutation is written through
// to the KV store before returning.
package hidelist

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/abelbrown/hush/internal/identity"
	"github.com/abelbrown/hush/internal/logging"
	"github.com/abelbrown/hush/internal/otel"
	"github.com/abelbrown/hush/internal/store"
)

var (
	// ErrPersist wraps a failed write. In-memory state was still updated.
	ErrPersist = errors.New("hidelist: persist failed")
	// ErrInvalidSnapshot rejects an import without changing state.
	ErrInvalidSnapshot = errors.New("hidelist: invalid snapshot")
	// ErrStaticAuthor is returned when removing a configuration author.
	ErrStaticAuthor = errors.New("hidelist: author is blocked by configuration")
	// ErrEmptyIdentifier rejects blank authors and item ids.
	ErrEmptyIdentifier = errors.New("hidelist: empty identifier")
)

// DefaultKeyVersion qualifies record keys when none is configured.
const DefaultKeyVersion = "v2"

// Keys names the three persisted records.
type Keys struct {
	Authors  string
	Items    string
	Settings string
}

// KeysFor returns the record keys for a layout version.
func KeysFor(version string) Keys {
	if version == "" {
		version = DefaultKeyVersion
	}
	prefix := "hush:" + version + ":"
	return Keys{
		Authors:  prefix + "blocked_authors",
		Items:    prefix + "blocked_items",
		Settings: prefix + "settings",
	}
}

// Option configures Load.
type Option func(*Store)

// WithKeyVersion overrides the record key version.
func WithKeyVersion(v string) Option {
	return func(s *Store) { s.keys = KeysFor(v) }
}

// WithEvents mirrors store errors into the event log.
func WithEvents(ev *otel.Logger) Option {
	return func(s *Store) { s.events = ev }
}

// WithClock overrides the export timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Store holds the hide list. Goroutine-safe.
type Store struct {
	mu       sync.RWMutex
	kv       store.KV
	keys     Keys
	static   map[string]struct{}
	authors  map[string]struct{}
	items    map[string]struct{}
	settings map[string]any

	log    *log.Logger
	events *otel.Logger
	now    func() time.Time
}

// Load reads both sets and the settings record from kv. A missing,
// unreadable or corrupt record is replaced by an empty one and logged.
// staticAuthors are unioned into author queries but never persisted.
func Load(kv store.KV, staticAuthors []string, logger *log.Logger, opts ...Option) *Store {
	s := &Store{
		kv:       kv,
		keys:     KeysFor(DefaultKeyVersion),
		static:   make(map[string]struct{}),
		authors:  make(map[string]struct{}),
		items:    make(map[string]struct{}),
		settings: make(map[string]any),
		log:      logging.OrDiscard(logger).WithPrefix("hidelist"),
		now:      time.Now,
	}
	for _, o := range opts {
		o(s)
	}

	for _, a := range staticAuthors {
		if a = cleanAuthor(a); a != "" {
			s.static[a] = struct{}{}
		}
	}

	s.authors = s.loadSet(s.keys.Authors, cleanAuthor)
	s.items = s.loadSet(s.keys.Items, strings.TrimSpace)
	s.settings = s.loadSettings()

	s.log.Debug("loaded", "authors", len(s.authors), "items", len(s.items), "static", len(s.static))
	return s
}

func (s *Store) read(key string) ([]byte, bool) {
	data, err := s.kv.Get(key)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			s.log.Warn("read failed, starting empty", "key", key, "err", err)
			s.events.Error(otel.KindStoreError, "hidelist", err)
		}
		return nil, false
	}
	return data, true
}

func (s *Store) loadSet(key string, clean func(string) string) map[string]struct{} {
	set := make(map[string]struct{})
	data, ok := s.read(key)
	if !ok {
		return set
	}
	var raw []any
	if err := json.Unmarshal(data, &raw); err != nil {
		s.log.Warn("corrupt record, starting empty", "key", key, "err", err)
		s.events.Error(otel.KindStoreError, "hidelist", err)
		return set
	}
	for _, v := range stringsOf(raw) {
		if v = clean(v); v != "" {
			set[v] = struct{}{}
		}
	}
	return set
}

func (s *Store) loadSettings() map[string]any {
	settings := make(map[string]any)
	data, ok := s.read(s.keys.Settings)
	if !ok {
		return settings
	}
	if err := json.Unmarshal(data, &settings); err != nil || settings == nil {
		s.log.Warn("corrupt settings, starting empty", "key", s.keys.Settings, "err", err)
		return make(map[string]any)
	}
	return settings
}

// stringsOf keeps the non-empty string entries of raw.
func stringsOf(raw []any) []string {
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		str, ok := v.(string)
		if !ok {
			continue
		}
		if str = strings.TrimSpace(str); str != "" {
			out = append(out, str)
		}
	}
	return out
}

// cleanAuthor normalises a like the extractor does, or returns "" when a
// could never match an extracted author.
func cleanAuthor(a string) string {
	a, _ = identity.NormalizeAuthor(a)
	return a
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// persistSet writes set under key. Caller holds s.mu.
func (s *Store) persistSet(key string, set map[string]struct{}) error {
	data, err := json.Marshal(sortedKeys(set))
	if err != nil {
		return fmt.Errorf("%w: encode %s: %v", ErrPersist, key, err)
	}
	return s.write(key, data)
}

func (s *Store) persistSettings() error {
	data, err := json.Marshal(s.settings)
	if err != nil {
		return fmt.Errorf("%w: encode %s: %v", ErrPersist, s.keys.Settings, err)
	}
	return s.write(s.keys.Settings, data)
}

func (s *Store) write(key string, data []byte) error {
	if err := s.kv.Set(key, data); err != nil {
		s.log.Error("write failed", "key", key, "err", err)
		s.events.Error(otel.KindStoreError, "hidelist", err)
		return fmt.Errorf("%w: %s: %v", ErrPersist, key, err)
	}
	return nil
}

// IsAuthorHidden reports whether author is blocked by the user or by
// configuration.
func (s *Store) IsAuthorHidden(author string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.static[author]; ok {
		return true
	}
	_, ok := s.authors[author]
	return ok
}

// IsItemHidden reports whether the item id is blocked.
func (s *Store) IsItemHidden(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.items[id]
	return ok
}

// IsStatic reports whether author comes from configuration.
func (s *Store) IsStatic(author string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.static[cleanAuthor(author)]
	return ok
}

// AddAuthor blocks author. A leading "@" is ignored.
func (s *Store) AddAuthor(author string) error {
	author = cleanAuthor(author)
	if author == "" {
		return ErrEmptyIdentifier
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.static[author]; ok {
		return nil
	}
	s.authors[author] = struct{}{}
	return s.persistSet(s.keys.Authors, s.authors)
}

// RemoveAuthor unblocks a user-added author. Configuration authors cannot
// be removed.
func (s *Store) RemoveAuthor(author string) error {
	author = cleanAuthor(author)
	if author == "" {
		return ErrEmptyIdentifier
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.static[author]; ok {
		return ErrStaticAuthor
	}
	if _, ok := s.authors[author]; !ok {
		return nil
	}
	delete(s.authors, author)
	return s.persistSet(s.keys.Authors, s.authors)
}

// AddItem blocks an item id.
func (s *Store) AddItem(id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return ErrEmptyIdentifier
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[id] = struct{}{}
	return s.persistSet(s.keys.Items, s.items)
}

// RemoveItem unblocks an item id.
func (s *Store) RemoveItem(id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return ErrEmptyIdentifier
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return nil
	}
	delete(s.items, id)
	return s.persistSet(s.keys.Items, s.items)
}

// Authors returns the user-blocked authors, sorted.
func (s *Store) Authors() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedKeys(s.authors)
}

// StaticAuthors returns the configuration-blocked authors, sorted.
func (s *Store) StaticAuthors() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedKeys(s.static)
}

// Items returns the blocked item ids, sorted.
func (s *Store) Items() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedKeys(s.items)
}

// Settings returns a copy of the settings record.
func (s *Store) Settings() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]any, len(s.settings))
	for k, v := range s.settings {
		out[k] = v
	}
	return out
}

// SetSetting stores one settings entry.
func (s *Store) SetSetting(key string, value any) error {
	if strings.TrimSpace(key) == "" {
		return ErrEmptyIdentifier
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[key] = value
	return s.persistSettings()
}

// ClearAll deletes every persisted record and empties memory.
// Configuration authors are unaffected.
func (s *Store) ClearAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authors = make(map[string]struct{})
	s.items = make(map[string]struct{})
	s.settings = make(map[string]any)

	var errs []error
	for _, key := range []string{s.keys.Authors, s.keys.Items, s.keys.Settings} {
		if err := s.kv.Delete(key); err != nil {
			s.log.Error("delete failed", "key", key, "err", err)
			s.events.Error(otel.KindStoreError, "hidelist", err)
			errs = append(errs, fmt.Errorf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrPersist, errors.Join(errs...))
	}
	return nil
}
