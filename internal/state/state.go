package state

import (
	"context"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/project-euler/queryassist/internal/models"
)

// ErrSourceNotFound is returned for source ids the store does not hold
var ErrSourceNotFound = errors.New("source not found")

// Source is one imported dataset with its schema and rows
type Source struct {
	Meta   models.SourceMeta
	Schema *models.Schema
	Rows   []models.Row
}

// Store holds every imported source in memory for the process lifetime
type Store struct {
	mu sync.RWMutex

	sources map[string]*Source
	order   []string

	now func() time.Time
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		sources: make(map[string]*Source),
		now:     time.Now,
	}
}

// NewSourceID derives an id from the file name and import time. The random
// suffix keeps repeated imports of the same file apart.
func NewSourceID(fileName string, at time.Time) string {
	base := strings.TrimSuffix(filepath.Base(fileName), filepath.Ext(fileName))
	return slug(base) + "-" + strconv.FormatInt(at.UnixMilli(), 10) + "-" + uuid.NewString()[:8]
}

func slug(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	out := strings.TrimSuffix(b.String(), "-")
	if out == "" {
		return "source"
	}
	return out
}

// Put adds a new source and returns its metadata
func (s *Store) Put(name, fileName string, schema *models.Schema, rows []models.Row) models.SourceMeta {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	meta := models.SourceMeta{
		SourceID:         NewSourceID(fileName, now),
		Name:             name,
		OriginalFileName: fileName,
		LastUpdated:      now,
		RowCount:         len(rows),
	}
	s.sources[meta.SourceID] = &Source{Meta: meta, Schema: schema, Rows: rows}
	s.order = append(s.order, meta.SourceID)
	return meta
}

// Replace rebuilds the schema and rows of an existing source, keeping its id
func (s *Store) Replace(sourceID string, schema *models.Schema, rows []models.Row) (models.SourceMeta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	src, ok := s.sources[sourceID]
	if !ok {
		return models.SourceMeta{}, errors.Wrapf(ErrSourceNotFound, "replace %s", sourceID)
	}
	src.Schema = schema
	src.Rows = rows
	src.Meta.LastUpdated = s.now()
	src.Meta.RowCount = len(rows)
	return src.Meta, nil
}

// Delete removes a source's metadata, schema and rows together
func (s *Store) Delete(sourceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sources[sourceID]; !ok {
		return errors.Wrapf(ErrSourceNotFound, "delete %s", sourceID)
	}
	delete(s.sources, sourceID)
	for i, id := range s.order {
		if id == sourceID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// Get returns a source by id
func (s *Store) Get(sourceID string) (*Source, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	src, ok := s.sources[sourceID]
	return src, ok
}

// GetSchema returns the schema of a source
func (s *Store) GetSchema(ctx context.Context, sourceID string) (*models.Schema, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	src, ok := s.sources[sourceID]
	if !ok {
		return nil, errors.Wrapf(ErrSourceNotFound, "schema of %s", sourceID)
	}
	return src.Schema, nil
}

// GetAllRows returns the rows of a source. The slice is a copy; the rows
// themselves are shared and must not be mutated.
func (s *Store) GetAllRows(ctx context.Context, sourceID string) ([]models.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	src, ok := s.sources[sourceID]
	if !ok {
		return nil, errors.Wrapf(ErrSourceNotFound, "rows of %s", sourceID)
	}
	return append([]models.Row(nil), src.Rows...), nil
}

// ListSources returns source metadata in import order
func (s *Store) ListSources(ctx context.Context) ([]models.SourceMeta, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.SourceMeta, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.sources[id].Meta)
	}
	return out, nil
}

// Len returns the number of sources held
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}
