package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/OFFIS-RIT/dematel/internal/history"
	"github.com/OFFIS-RIT/dematel/internal/storage"
	"github.com/OFFIS-RIT/dematel/pkg/leaselock"
	"github.com/OFFIS-RIT/dematel/pkg/logger"
	"github.com/OFFIS-RIT/dematel/pkg/report"
	"github.com/OFFIS-RIT/dematel/pkg/tree"
)

// ReportMsg asks the worker to rebuild the workbook of Sheet from history entry HistoryID.
type ReportMsg struct {
	HistoryID int64  `json:"history_id"`
	SurveyID  string `json:"survey_id"`
	Sheet     string `json:"sheet"`
}

// HistoryReader loads submissions.
type HistoryReader interface {
	Get(ctx context.Context, id int64) (history.Entry, error)
	ListAllBySurvey(ctx context.Context, surveyID string) ([]history.Entry, error)
}

// ObjectWriter stores report artifacts.
type ObjectWriter interface {
	Put(ctx context.Context, key string, body []byte) error
}

// Locker runs fn while holding a named lease.
type Locker interface {
	WithLease(ctx context.Context, key string, opts leaselock.Options, fn func(ctx context.Context) error) error
}

// ReportDeps are the collaborators of ProcessReportMessage.
type ReportDeps struct {
	History  HistoryReader
	Archive  ObjectWriter
	Locks    Locker
	Location *time.Location
}

// ProcessReportMessage rebuilds one survey workbook and uploads it together with
// the raw submission and the survey's submission log. Rebuilds of the same sheet
// are serialized by a lease.
func ProcessReportMessage(ctx context.Context, deps ReportDeps, body []byte) error {
	var msg ReportMsg
	if err := json.Unmarshal(body, &msg); err != nil {
		return fmt.Errorf("decode report message: %w", err)
	}
	if msg.Sheet == "" {
		return fmt.Errorf("report message %d has no sheet", msg.HistoryID)
	}

	entry, err := deps.History.Get(ctx, msg.HistoryID)
	if err != nil {
		return err
	}
	payload, err := tree.ParseObject([]byte(entry.Payload))
	if err != nil {
		return fmt.Errorf("parse submission %d: %w", msg.HistoryID, err)
	}

	wb := report.BuildWorkbook(msg.Sheet, payload, deps.Location)
	sheetCSV, err := wb.CSV()
	if err != nil {
		return err
	}
	snapshot, err := tree.MarshalIndent(payload, "  ")
	if err != nil {
		return fmt.Errorf("encode submission %d: %w", msg.HistoryID, err)
	}

	logCSV, err := historyCSV(ctx, deps, entry.SurveyID)
	if err != nil {
		return err
	}

	opts := leaselock.Options{TTL: time.Minute, Wait: true, WaitJitter: 100 * time.Millisecond}
	return deps.Locks.WithLease(ctx, leaselock.SheetKey(msg.Sheet), opts, func(ctx context.Context) error {
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return deps.Archive.Put(gctx, storage.WorkbookKey(msg.Sheet), sheetCSV)
		})
		g.Go(func() error {
			return deps.Archive.Put(gctx, storage.SnapshotKey(msg.Sheet), snapshot)
		})
		g.Go(func() error {
			return deps.Archive.Put(gctx, storage.HistoryKey(msg.Sheet), logCSV)
		})
		if err := g.Wait(); err != nil {
			return err
		}

		logger.Info("[Queue] Rebuilt workbook",
			"survey_id", msg.SurveyID,
			"sheet", msg.Sheet,
			"history_id", msg.HistoryID,
			"matrices", len(wb.Matrices),
		)
		return nil
	})
}

// historyCSV renders the submissions of surveyID oldest first.
func historyCSV(ctx context.Context, deps ReportDeps, surveyID string) ([]byte, error) {
	entries, err := deps.History.ListAllBySurvey(ctx, surveyID)
	if err != nil {
		return nil, fmt.Errorf("list submissions of %s: %w", surveyID, err)
	}
	rows := make([]report.HistoryRow, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, report.HistoryRow{Timestamp: e.ReceivedAt, SurveyID: e.SurveyID, JSON: e.Payload})
	}
	return report.HistoryCSV(rows, deps.Location)
}
