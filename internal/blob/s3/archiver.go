package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/polycouncil/internal/domain"
)

const (
	jsonlContentType = "application/x-ndjson"
	// Bodies above this go through the multipart uploader.
	multipartThreshold = 8 * 1024 * 1024
)

// Archiver exports one UTC day of closed trades and evaluated signals as
// JSONL. Days whose object already exists are skipped, so reruns are safe.
type Archiver struct {
	writer domain.BlobWriter
	reader domain.BlobReader // optional
	source domain.ArchiveSource
	logger *slog.Logger
	now    func() time.Time
}

// NewArchiver creates an Archiver. reader may be nil, in which case every
// run overwrites.
func NewArchiver(writer domain.BlobWriter, reader domain.BlobReader, source domain.ArchiveSource, logger *slog.Logger) *Archiver {
	return &Archiver{
		writer: writer,
		reader: reader,
		source: source,
		logger: logger.With(slog.String("component", "archiver")),
		now:    time.Now,
	}
}

// ArchivePath returns archive/<kind>/YYYY-MM-DD.jsonl for day (UTC).
func ArchivePath(kind string, day time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, day.UTC().Format(time.DateOnly))
}

func dayBounds(day time.Time) (time.Time, time.Time) {
	d := day.UTC()
	start := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 0, 1)
}

// ArchiveTrades uploads the trades closed on day and returns how many were
// written.
func (a *Archiver) ArchiveTrades(ctx context.Context, day time.Time) (int64, error) {
	from, to := dayBounds(day)
	return archiveKind(ctx, a, "trades", day, func() ([]domain.TradeRecord, error) {
		return a.source.ListClosedTradesBetween(ctx, from, to)
	})
}

// ArchiveSignals uploads the signals recorded on day.
func (a *Archiver) ArchiveSignals(ctx context.Context, day time.Time) (int64, error) {
	from, to := dayBounds(day)
	return archiveKind(ctx, a, "signals", day, func() ([]domain.SignalRecord, error) {
		return a.source.ListSignalsBetween(ctx, from, to)
	})
}

func archiveKind[T any](ctx context.Context, a *Archiver, kind string, day time.Time, list func() ([]T, error)) (int64, error) {
	path := ArchivePath(kind, day)
	if a.reader != nil {
		exists, err := a.reader.Exists(ctx, path)
		if err != nil {
			return 0, fmt.Errorf("s3blob: archive %s: %w", kind, err)
		}
		if exists {
			a.logger.Debug("archive exists, skipping", slog.String("path", path))
			return 0, nil
		}
	}

	recs, err := list()
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive %s query: %w", kind, err)
	}
	if len(recs) == 0 {
		return 0, nil
	}

	body, err := marshalJSONL(recs)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive %s: %w", kind, err)
	}
	if len(body) > multipartThreshold {
		err = a.writer.PutMultipart(ctx, path, bytes.NewReader(body), minPartSize)
	} else {
		err = a.writer.Put(ctx, path, bytes.NewReader(body), jsonlContentType)
	}
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive %s upload: %w", kind, err)
	}

	a.logger.Info("archived", slog.String("path", path), slog.Int("records", len(recs)))
	return int64(len(recs)), nil
}

// ArchiveDay archives both kinds for day. A failure of one kind does not
// stop the other.
func (a *Archiver) ArchiveDay(ctx context.Context, day time.Time) error {
	_, terr := a.ArchiveTrades(ctx, day)
	_, serr := a.ArchiveSignals(ctx, day)
	if terr != nil {
		return terr
	}
	return serr
}

// Run archives the previous UTC day on every tick until ctx ends.
func (a *Archiver) Run(ctx context.Context, every time.Duration) error {
	if every <= 0 {
		every = time.Hour
	}
	t := time.NewTicker(every)
	defer t.Stop()

	var done time.Time
	for {
		yesterday, _ := dayBounds(a.now().AddDate(0, 0, -1))
		if !yesterday.Equal(done) {
			if err := a.ArchiveDay(ctx, yesterday); err != nil {
				a.logger.Warn("archive failed", slog.String("day", yesterday.Format(time.DateOnly)), slog.String("error", err.Error()))
			} else {
				done = yesterday
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
}

func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

var _ domain.Archiver = (*Archiver)(nil)
