package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"playjelly/db"
	"playjelly/models"
	"playjelly/storage"
)

const DefaultUptimeRetentionDays = 365

type ArchiveResult struct {
	Archived  int    `json:"archived"`
	ObjectKey string `json:"object_key,omitempty"`
}

// Archiver moves uptime rollups older than the retention window into blob
// storage. Rows are deleted only after the upload succeeded, and only the
// rows that were uploaded.
type Archiver struct {
	repo          *db.Repository
	store         storage.BlobStore
	prefix        string
	retentionDays int
	log           *slog.Logger
	now           func() time.Time
}

func NewArchiver(repo *db.Repository, store storage.BlobStore, prefix string, retentionDays int, logger *slog.Logger) *Archiver {
	if retentionDays <= 0 {
		retentionDays = DefaultUptimeRetentionDays
	}
	return &Archiver{
		repo:          repo,
		store:         store,
		prefix:        strings.Trim(prefix, "/"),
		retentionDays: retentionDays,
		log:           logger,
		now:           time.Now,
	}
}

func (a *Archiver) Run(ctx context.Context) (ArchiveResult, error) {
	now := a.now().UTC()
	cutoff := db.DayKey(now.AddDate(0, 0, -a.retentionDays))

	rows, err := a.repo.UptimeBefore(ctx, cutoff)
	if err != nil {
		return ArchiveResult{}, fmt.Errorf("select uptime before %s: %w", cutoff, err)
	}
	if len(rows) == 0 {
		a.log.Info("no uptime history to archive", "cutoff", cutoff)
		return ArchiveResult{}, nil
	}

	body, err := encodeUptimeCSV(rows)
	if err != nil {
		return ArchiveResult{}, fmt.Errorf("encode archive: %w", err)
	}
	key := fmt.Sprintf("uptime_history_%s_%d.csv", cutoff, now.Unix())
	if a.prefix != "" {
		key = a.prefix + "/" + key
	}
	if err := a.store.Put(ctx, key, body, "text/csv"); err != nil {
		return ArchiveResult{}, fmt.Errorf("upload archive: %w", err)
	}

	deleted, err := a.repo.DeleteUptimeRecords(ctx, rows)
	if err != nil {
		// The object is already stored. Leaving the rows means the next run
		// exports them again under a new key.
		return ArchiveResult{ObjectKey: key}, fmt.Errorf("delete archived rows: %w", err)
	}
	a.log.Info("uptime history archived", "rows", deleted, "key", key, "cutoff", cutoff)
	return ArchiveResult{Archived: int(deleted), ObjectKey: key}, nil
}

var uptimeCSVHeader = []string{"service_id", "date", "uptime_percentage", "avg_response_time_ms", "up_checks", "total_checks"}

func encodeUptimeCSV(rows []models.UptimeRecord) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(uptimeCSVHeader); err != nil {
		return nil, err
	}
	for _, r := range rows {
		avg := ""
		if r.AvgResponseTimeMs != nil {
			avg = strconv.FormatFloat(*r.AvgResponseTimeMs, 'f', -1, 64)
		}
		rec := []string{
			r.ServiceID,
			r.Date,
			strconv.FormatFloat(r.UptimePercentage, 'f', -1, 64),
			avg,
			strconv.Itoa(r.UpChecks),
			strconv.Itoa(r.TotalChecks),
		}
		if err := w.Write(rec); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}
