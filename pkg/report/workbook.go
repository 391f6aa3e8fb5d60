// Package report lays out a submitted answer payload as a spreadsheet: a key/value
// block of respondent details followed by one DEMATEL matrix per label cluster.
package report

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"time"

	"github.com/OFFIS-RIT/dematel/pkg/dematel"
	"github.com/OFFIS-RIT/dematel/pkg/logger"
	"github.com/OFFIS-RIT/dematel/pkg/tree"
)

// HistorySheet names the append-only log of raw submissions.
const HistorySheet = "history"

// Keys of the payload that are not copied into the key/value block.
var skipKeys = []string{"answers", "key"}

// Workbook is one survey's sheet as rows of cells. Rows may differ in length.
type Workbook struct {
	Sheet    string
	Rows     [][]string
	Matrices []dematel.Matrix
}

// BuildWorkbook lays out payload. Start and end times are rendered in loc.
func BuildWorkbook(sheet string, payload *tree.Object, loc *time.Location) *Workbook {
	kvSource := tree.NewObject()
	for _, k := range payload.Keys() {
		v, _ := payload.Get(k)
		kvSource.Set(k, v)
	}
	for _, k := range []string{"startTime", "endTime"} {
		v, _ := payload.Get(k)
		kvSource.Set(k, tree.String(FormatTimestamp(v, loc)))
	}

	rows := [][]string{{"key", "value"}}
	for _, kv := range Flatten(kvSource, skipKeys...) {
		rows = append(rows, []string{kv.Key, kv.Value})
	}

	matrices := dematel.BuildMatrices(RawAnswers(payload))
	for i, m := range matrices {
		rows = append(rows, nil)
		rows = append(rows, []string{fmt.Sprintf("answers.matrix_%d", i+1), "Group: " + m.Group})
		rows = append(rows, MatrixGrid(m)...)
	}

	logger.Debug("[Report] Built workbook", "sheet", sheet, "rows", len(rows), "matrices", len(matrices))
	return &Workbook{Sheet: sheet, Rows: rows, Matrices: matrices}
}

// MatrixGrid renders m with a header row and a label column, shifted one column right.
func MatrixGrid(m dematel.Matrix) [][]string {
	header := make([]string, 0, len(m.Labels)+2)
	header = append(header, "", "")
	header = append(header, m.Labels...)

	grid := [][]string{header}
	for i, label := range m.Labels {
		row := make([]string, 0, len(m.Labels)+2)
		row = append(row, "", label)
		for _, v := range m.Values[i] {
			s, err := tree.FormatNumber(v)
			if err != nil {
				s = "0"
			}
			row = append(row, s)
		}
		grid = append(grid, row)
	}
	return grid
}

// RawAnswers extracts the "l|r" -> "a|b" answers of a payload. A missing or
// non-object answers field yields no answers.
func RawAnswers(payload *tree.Object) map[string]string {
	answers, ok := payload.GetObject("answers")
	if !ok {
		return nil
	}
	raw := make(map[string]string, answers.Len())
	for _, k := range answers.Keys() {
		v, _ := answers.Get(k)
		raw[k] = CellText(v)
	}
	return raw
}

// CSV renders the workbook rows.
func (w *Workbook) CSV() ([]byte, error) {
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	for _, row := range w.Rows {
		if row == nil {
			row = []string{""}
		}
		if err := cw.Write(row); err != nil {
			return nil, fmt.Errorf("write sheet %s: %w", w.Sheet, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return nil, fmt.Errorf("write sheet %s: %w", w.Sheet, err)
	}
	return buf.Bytes(), nil
}

// HistoryRow is one entry of the submission log.
type HistoryRow struct {
	Timestamp time.Time `json:"timestamp"`
	SurveyID  string    `json:"surveyId"`
	JSON      string    `json:"json"`
}

// NewHistoryRow records payload as received at now.
func NewHistoryRow(surveyID string, payload *tree.Object, now time.Time) (HistoryRow, error) {
	b, err := tree.Marshal(payload)
	if err != nil {
		return HistoryRow{}, fmt.Errorf("encode submission %s: %w", surveyID, err)
	}
	return HistoryRow{Timestamp: now, SurveyID: surveyID, JSON: string(b)}, nil
}

// HistoryCSV renders history rows under a header.
func HistoryCSV(rows []HistoryRow, loc *time.Location) ([]byte, error) {
	if loc == nil {
		loc = time.Local
	}
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	if err := cw.Write([]string{"timestamp", "surveyId", "json"}); err != nil {
		return nil, err
	}
	for _, r := range rows {
		if err := cw.Write([]string{r.Timestamp.In(loc).Format(TimestampLayout), r.SurveyID, r.JSON}); err != nil {
			return nil, err
		}
	}
	cw.Flush()
	return buf.Bytes(), cw.Error()
}
