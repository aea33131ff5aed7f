// Package batch groups resolved access points into per-row update batches
// and ships them to a sink.
//
// A batch carries every resolved point of one row cluster. Batches are
// independent: a sink failure is recorded against the batch and the run
// continues with the next one.
package batch

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/matzehuels/pinaccess/pkg/access"
	"github.com/matzehuels/pinaccess/pkg/access/rowpat"
	"github.com/matzehuels/pinaccess/pkg/errors"
	"github.com/matzehuels/pinaccess/pkg/observability"
)

// IORow is the row number of the batch carrying block terminal points.
const IORow = -1

// Batch is one unit of export.
type Batch struct {
	ID      string            `json:"id" bson:"_id"`
	RunID   string            `json:"run_id" bson:"run_id"`
	Row     int               `json:"row" bson:"row"`
	Created time.Time         `json:"created" bson:"created"`
	Updates []access.Resolved `json:"updates" bson:"updates"`
}

// Sink receives batches. Implementations must be safe for sequential use;
// Export never calls Write concurrently.
type Sink interface {
	Write(ctx context.Context, b Batch) error
	Close() error
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// Group builds one batch per row from the committed table, plus one batch
// for block terminals when any were resolved. Rows without resolved points
// produce no batch.
func Group(runID string, rows []rowpat.Row, table *access.Table) []Batch {
	now := time.Now().UTC()
	var out []Batch
	for _, r := range rows {
		var ups []access.Resolved
		for _, inst := range r.Insts {
			ups = append(ups, table.Get(inst)...)
		}
		if len(ups) == 0 {
			continue
		}
		out = append(out, Batch{ID: uuid.NewString(), RunID: runID, Row: r.ID, Created: now, Updates: ups})
	}
	if ios := table.IO(); len(ios) > 0 {
		out = append(out, Batch{ID: uuid.NewString(), RunID: runID, Row: IORow, Created: now, Updates: ios})
	}
	return out
}

// Export writes every batch to sink and returns the IDs of the batches that
// failed. Only context cancellation aborts the export.
func Export(ctx context.Context, sink Sink, batches []Batch, logger *log.Logger) ([]string, error) {
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	var failed []string
	for _, b := range batches {
		if err := ctx.Err(); err != nil {
			return failed, err
		}
		err := sink.Write(ctx, b)
		observability.Access().OnBatch(ctx, len(b.Updates), err)
		if err != nil {
			failed = append(failed, b.ID)
			werr := errors.Wrap(errors.ErrCodeBatchFailed, err, "batch %s (row %d)", b.ID, b.Row)
			logger.Warn("batch export failed", "batch", b.ID, "row", b.Row, "updates", len(b.Updates), "err", werr)
			continue
		}
		logger.Debug("batch exported", "batch", b.ID, "row", b.Row, "updates", len(b.Updates))
	}
	return failed, nil
}

// Open returns the sink for target: "mongodb://..." and "mongodb+srv://..."
// URIs open a MongoSink, anything else is a JSON lines file path.
func Open(ctx context.Context, target string) (Sink, error) {
	if isMongoURI(target) {
		return NewMongoSink(ctx, target, DefaultDatabase, DefaultCollection)
	}
	s, err := NewFileSink(target)
	if err != nil {
		return nil, fmt.Errorf("open batch file: %w", err)
	}
	return s, nil
}
