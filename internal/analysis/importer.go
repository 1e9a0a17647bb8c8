package analysis

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/project-euler/queryassist/internal/models"
	"github.com/project-euler/queryassist/internal/translator"
)

// Sink receives imported sources. The in-memory state store satisfies it.
type Sink interface {
	Put(name, fileName string, schema *models.Schema, rows []models.Row) models.SourceMeta
	Replace(sourceID string, schema *models.Schema, rows []models.Row) (models.SourceMeta, error)
}

// Result describes one completed import
type Result struct {
	Source     models.SourceMeta    `json:"source"`
	Schema     *models.Schema       `json:"schema"`
	Format     Format               `json:"format"`
	Translator *TranslatorCandidate `json:"translator,omitempty"`
}

// Importer parses, types and stores datasets
type Importer struct {
	sink        Sink
	translators *translator.Registry
	inferrer    TypeInferrer
	logger      *slog.Logger
}

// NewImporter wires an importer. translators may be nil to skip lookup table
// registration; a nil inferrer uses the default heuristic.
func NewImporter(sink Sink, translators *translator.Registry, inferrer TypeInferrer, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	if inferrer == nil {
		inferrer = NewHeuristicInferrer(DefaultSampleSize, DefaultTypeThreshold)
	}
	return &Importer{
		sink:        sink,
		translators: translators,
		inferrer:    inferrer,
		logger:      logger.With("component", "importer"),
	}
}

// ImportFile reads a dataset from disk
func (im *Importer) ImportFile(ctx context.Context, path string) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	return im.ImportBytes(ctx, "", filepath.Base(path), data)
}

// ImportBytes parses an uploaded body. An empty name is derived from the file name.
func (im *Importer) ImportBytes(ctx context.Context, name, fileName string, data []byte) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ds, err := Parse(fileName, data)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(name) != "" {
		ds.Name = strings.TrimSpace(name)
	}
	return im.store(ds), nil
}

// ReplaceBytes re-imports a body over an existing source, keeping its id
func (im *Importer) ReplaceBytes(ctx context.Context, sourceID, fileName string, data []byte) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ds, err := Parse(fileName, data)
	if err != nil {
		return nil, err
	}
	return im.replace(ds, sourceID)
}

// ImportTable copies a database table into a source. An empty name is derived
// from the table name.
func (im *Importer) ImportTable(ctx context.Context, pg *PostgresSource, table, name string) (*Result, error) {
	ds, err := pg.ReadTable(ctx, table)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(name) != "" {
		ds.Name = strings.TrimSpace(name)
	}
	return im.store(ds), nil
}

func (im *Importer) store(ds *Dataset) *Result {
	schema := im.inferrer.InferSchema(ds.Headers, ds.Rows)
	meta := im.sink.Put(ds.Name, ds.FileName, schema, ds.Rows)
	res := &Result{Source: meta, Schema: schema, Format: ds.Format}
	res.Translator = im.registerTranslator(ds.Name, schema, ds.Rows)

	im.logger.Info("dataset imported",
		"source", meta.SourceID,
		"name", meta.Name,
		"format", ds.Format,
		"rows", meta.RowCount,
		"fields", len(schema.Fields),
	)
	return res
}

func (im *Importer) replace(ds *Dataset, sourceID string) (*Result, error) {
	schema := im.inferrer.InferSchema(ds.Headers, ds.Rows)
	meta, err := im.sink.Replace(sourceID, schema, ds.Rows)
	if err != nil {
		return nil, err
	}
	res := &Result{Source: meta, Schema: schema, Format: ds.Format}
	res.Translator = im.registerTranslator(meta.Name, schema, ds.Rows)

	im.logger.Info("dataset replaced", "source", meta.SourceID, "rows", meta.RowCount)
	return res, nil
}

func (im *Importer) registerTranslator(name string, schema *models.Schema, rows []models.Row) *TranslatorCandidate {
	if im.translators == nil {
		return nil
	}
	cand, ok := DetectTranslator(name, schema, rows)
	if !ok {
		return nil
	}
	im.translators.Register(cand.Type, cand.Names, translator.Options{Synonyms: cand.Synonyms})
	im.logger.Info("translator registered", "type", cand.Type, "names", len(cand.Names))
	return cand
}
