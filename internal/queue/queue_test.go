package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"github.com/OFFIS-RIT/dematel/internal/history"
	"github.com/OFFIS-RIT/dematel/pkg/leaselock"
)

type published struct {
	key string
	msg amqp091.Publishing
}

type fakePublisher struct {
	out []published
	err error
}

func (p *fakePublisher) Publish(_, key string, _, _ bool, msg amqp091.Publishing) error {
	if p.err != nil {
		return p.err
	}
	p.out = append(p.out, published{key: key, msg: msg})
	return nil
}

type fakeAck struct {
	acked, nacked, requeued bool
}

func (a *fakeAck) Ack(uint64, bool) error { a.acked = true; return nil }
func (a *fakeAck) Nack(_ uint64, _ bool, requeue bool) error {
	a.nacked = true
	a.requeued = requeue
	return nil
}
func (a *fakeAck) Reject(uint64, bool) error { return nil }

func TestHandleProcessingError_Retry(t *testing.T) {
	pub := &fakePublisher{}
	ack := &fakeAck{}
	msg := amqp091.Delivery{Acknowledger: ack, DeliveryTag: 1, Body: []byte("{}"), Headers: amqp091.Table{"x-retries": int64(3)}}

	HandleProcessingError(pub, msg, ReportQueue)

	if len(pub.out) != 1 || pub.out[0].key != "report_queue_retry" {
		t.Fatalf("unexpected publish: %+v", pub.out)
	}
	if got := pub.out[0].msg.Headers["x-retries"]; got != int32(4) {
		t.Fatalf("x-retries = %v, want 4", got)
	}
	if !ack.acked {
		t.Fatal("original delivery was not acked")
	}
}

func TestHandleProcessingError_DeadLetter(t *testing.T) {
	pub := &fakePublisher{}
	ack := &fakeAck{}
	msg := amqp091.Delivery{Acknowledger: ack, DeliveryTag: 1, Headers: amqp091.Table{"x-retries": int32(MaxRetries)}}

	HandleProcessingError(pub, msg, ReportQueue)

	if len(pub.out) != 1 || pub.out[0].key != "report_queue_dlq" {
		t.Fatalf("unexpected publish: %+v", pub.out)
	}
	if !ack.acked {
		t.Fatal("original delivery was not acked")
	}
}

func TestHandleProcessingError_PublishFails(t *testing.T) {
	pub := &fakePublisher{err: errors.New("channel closed")}
	ack := &fakeAck{}
	HandleProcessingError(pub, amqp091.Delivery{Acknowledger: ack, DeliveryTag: 1}, ReportQueue)

	if ack.acked || !ack.nacked || !ack.requeued {
		t.Fatalf("expected nack with requeue, got %+v", ack)
	}
}

func TestRetries(t *testing.T) {
	tests := []struct {
		name    string
		headers amqp091.Table
		want    int
	}{
		{"missing", nil, 0},
		{"int32", amqp091.Table{"x-retries": int32(2)}, 2},
		{"int64", amqp091.Table{"x-retries": int64(5)}, 5},
		{"string", amqp091.Table{"x-retries": "7"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Retries(amqp091.Delivery{Headers: tt.headers}); got != tt.want {
				t.Fatalf("Retries = %d, want %d", got, tt.want)
			}
		})
	}
}

type fakeHistory map[int64]history.Entry

func (h fakeHistory) Get(_ context.Context, id int64) (history.Entry, error) {
	e, ok := h[id]
	if !ok {
		return history.Entry{}, history.ErrNotFound
	}
	return e, nil
}

func (h fakeHistory) ListAllBySurvey(_ context.Context, surveyID string) ([]history.Entry, error) {
	var out []history.Entry
	for _, e := range h {
		if e.SurveyID == surveyID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type fakeArchive struct {
	mu      sync.Mutex
	objects map[string][]byte
	err     error
}

func (a *fakeArchive) Put(_ context.Context, key string, body []byte) error {
	if a.err != nil {
		return a.err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.objects[key] = body
	return nil
}

type fakeLocker struct {
	keys []string
}

func (l *fakeLocker) WithLease(ctx context.Context, key string, _ leaselock.Options, fn func(context.Context) error) error {
	l.keys = append(l.keys, key)
	return fn(ctx)
}

func TestProcessReportMessage(t *testing.T) {
	payload := `{"surveyId":"s-1","answers":{"A|B":"3|5"},"startTime":1739000000000}`
	deps := ReportDeps{
		History: fakeHistory{
			6: {ID: 6, SurveyID: "s-1", Sheet: "s-1", Payload: `{"surveyId":"s-1"}`, ReceivedAt: time.Date(2025, 2, 8, 7, 0, 0, 0, time.UTC)},
			7: {ID: 7, SurveyID: "s-1", Sheet: "s-1", Payload: payload, ReceivedAt: time.Date(2025, 2, 8, 7, 33, 20, 0, time.UTC)},
		},
		Archive:  &fakeArchive{objects: make(map[string][]byte)},
		Locks:    &fakeLocker{},
		Location: time.UTC,
	}
	body, _ := json.Marshal(ReportMsg{HistoryID: 7, SurveyID: "s-1", Sheet: "s-1"})

	if err := ProcessReportMessage(context.Background(), deps, body); err != nil {
		t.Fatalf("ProcessReportMessage: %v", err)
	}

	archive := deps.Archive.(*fakeArchive)
	sheet := string(archive.objects["s-1/workbook.csv"])
	if !strings.Contains(sheet, "answers.matrix_1,Group: A-B") {
		t.Fatalf("workbook missing matrix block:\n%s", sheet)
	}
	if !strings.Contains(sheet, "startTime,2025-02-08 07:33:20") {
		t.Fatalf("workbook missing formatted start time:\n%s", sheet)
	}
	if !strings.HasPrefix(string(archive.objects["s-1/submission.json"]), "{\n  \"surveyId\": \"s-1\"") {
		t.Fatalf("unexpected snapshot: %s", archive.objects["s-1/submission.json"])
	}
	logLines := strings.Split(strings.TrimSpace(string(archive.objects["s-1/history.csv"])), "\n")
	if len(logLines) != 3 || logLines[0] != "timestamp,surveyId,json" || !strings.HasPrefix(logLines[1], "2025-02-08 07:00:00,s-1,") {
		t.Fatalf("unexpected history log: %q", logLines)
	}
	if keys := deps.Locks.(*fakeLocker).keys; len(keys) != 1 || keys[0] != "sheet:s-1" {
		t.Fatalf("unexpected lease keys: %v", keys)
	}
}

func TestProcessReportMessage_FullHistoryLog(t *testing.T) {
	const n = 150
	start := time.Date(2025, 2, 8, 7, 0, 0, 0, time.UTC)
	entries := fakeHistory{}
	for i := 1; i <= n; i++ {
		entries[int64(i)] = history.Entry{
			ID:         int64(i),
			SurveyID:   "s-1",
			Sheet:      "s-1",
			Payload:    fmt.Sprintf(`{"surveyId":"s-1","n":%d}`, i),
			ReceivedAt: start.Add(time.Duration(i) * time.Second),
		}
	}
	deps := ReportDeps{
		History:  entries,
		Archive:  &fakeArchive{objects: make(map[string][]byte)},
		Locks:    &fakeLocker{},
		Location: time.UTC,
	}
	body, _ := json.Marshal(ReportMsg{HistoryID: n, SurveyID: "s-1", Sheet: "s-1"})

	if err := ProcessReportMessage(context.Background(), deps, body); err != nil {
		t.Fatalf("ProcessReportMessage: %v", err)
	}

	logLines := strings.Split(strings.TrimSpace(string(deps.Archive.(*fakeArchive).objects["s-1/history.csv"])), "\n")
	if len(logLines) != n+1 {
		t.Fatalf("history log has %d rows, want %d", len(logLines)-1, n)
	}
	if !strings.Contains(logLines[1], `""n"":1}`) || !strings.Contains(logLines[n], fmt.Sprintf(`""n"":%d}`, n)) {
		t.Fatalf("history log not oldest first: first=%s last=%s", logLines[1], logLines[n])
	}
}

func TestProcessReportMessage_Errors(t *testing.T) {
	deps := ReportDeps{
		History: fakeHistory{1: {ID: 1, Payload: `[1]`}},
		Archive: &fakeArchive{objects: make(map[string][]byte), err: errors.New("s3 down")},
		Locks:   &fakeLocker{},
	}
	ctx := context.Background()

	if err := ProcessReportMessage(ctx, deps, []byte("nope")); err == nil {
		t.Fatal("expected decode error")
	}
	if err := ProcessReportMessage(ctx, deps, []byte(`{"history_id":1}`)); err == nil {
		t.Fatal("expected missing sheet error")
	}
	if err := ProcessReportMessage(ctx, deps, []byte(`{"history_id":2,"sheet":"s"}`)); !errors.Is(err, history.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := ProcessReportMessage(ctx, deps, []byte(`{"history_id":1,"sheet":"s"}`)); err == nil {
		t.Fatal("expected parse error for non-object payload")
	}

	deps.History = fakeHistory{1: {ID: 1, Payload: `{"surveyId":"s"}`}}
	if err := ProcessReportMessage(ctx, deps, []byte(`{"history_id":1,"sheet":"s"}`)); err == nil || !strings.Contains(err.Error(), "s3 down") {
		t.Fatalf("expected upload error, got %v", err)
	}
}

func TestPublishFIFO(t *testing.T) {
	pub := &fakePublisher{}
	if err := (ChannelPublisher{Channel: pub}).PublishFIFO(ReportQueue, []byte(`{"history_id":1}`)); err != nil {
		t.Fatalf("PublishFIFO: %v", err)
	}
	if len(pub.out) != 1 || pub.out[0].key != ReportQueue || pub.out[0].msg.DeliveryMode != amqp091.Persistent {
		t.Fatalf("unexpected publish: %+v", pub.out)
	}
}
