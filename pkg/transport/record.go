package transport

import (
	"fmt"
	"time"

	"github.com/OFFIS-RIT/dematel/pkg/survey"
	"github.com/OFFIS-RIT/dematel/pkg/tree"
)

// Record is the canonical export of one session. Answers use the "l|r" -> "a|b"
// form with category prefixes removed.
type Record struct {
	SurveyID       string
	BasicInfo      *tree.Object
	Answers        []survey.KeyPair
	ConfigDigest   string
	StartTime      int64 // Unix milliseconds, 0 when unset
	EndTime        int64
	TotalQuestions int
}

// NewRecord snapshots a session against its question space.
func NewRecord(s *survey.Session, questions []survey.PairwiseQuestion) Record {
	return Record{
		SurveyID:       s.ID,
		BasicInfo:      s.BasicInfo,
		Answers:        survey.RawAnswers(questions, s.Answers),
		ConfigDigest:   s.ConfigDigest,
		StartTime:      millis(s.StartTime),
		EndTime:        millis(s.EndTime),
		TotalQuestions: len(questions),
	}
}

func millis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

// Tree returns the record as a document with a fixed field order.
func (r Record) Tree() *tree.Object {
	answers := tree.NewObject()
	for _, a := range r.Answers {
		answers.Set(a.Key, tree.String(a.Pair))
	}
	info := r.BasicInfo
	if info == nil {
		info = tree.NewObject()
	}
	return tree.NewObject().
		Set("surveyId", tree.String(r.SurveyID)).
		Set("basicInfo", info).
		Set("answers", answers).
		Set("configDigest", tree.String(r.ConfigDigest)).
		Set("startTime", timeValue(r.StartTime)).
		Set("endTime", timeValue(r.EndTime)).
		Set("totalQuestions", tree.Number(r.TotalQuestions))
}

// RawAnswers returns the answers in the map form matrix building consumes.
func (r Record) RawAnswers() map[string]string {
	m := make(map[string]string, len(r.Answers))
	for _, a := range r.Answers {
		m[a.Key] = a.Pair
	}
	return m
}

func timeValue(ms int64) tree.Value {
	if ms == 0 {
		return tree.Null{}
	}
	return tree.Number(ms)
}

// RecordFromTree reads a record document back.
func RecordFromTree(obj *tree.Object) (Record, error) {
	var r Record
	var ok bool
	if r.SurveyID, ok = obj.GetString("surveyId"); !ok {
		return Record{}, fmt.Errorf("%w: surveyId is not a string", ErrMalformedEnvelope)
	}
	if r.BasicInfo, ok = obj.GetObject("basicInfo"); !ok {
		return Record{}, fmt.Errorf("%w: basicInfo is not an object", ErrMalformedEnvelope)
	}
	answers, ok := obj.GetObject("answers")
	if !ok {
		return Record{}, fmt.Errorf("%w: answers is not an object", ErrMalformedEnvelope)
	}
	for _, k := range answers.Keys() {
		pair, ok := answers.GetString(k)
		if !ok {
			return Record{}, fmt.Errorf("%w: answer %q is not a string", ErrMalformedEnvelope, k)
		}
		r.Answers = append(r.Answers, survey.KeyPair{Key: k, Pair: pair})
	}
	if r.ConfigDigest, ok = obj.GetString("configDigest"); !ok {
		return Record{}, fmt.Errorf("%w: configDigest is not a string", ErrMalformedEnvelope)
	}

	var err error
	if r.StartTime, err = timeField(obj, "startTime"); err != nil {
		return Record{}, err
	}
	if r.EndTime, err = timeField(obj, "endTime"); err != nil {
		return Record{}, err
	}
	total, ok := obj.Get("totalQuestions")
	n, isNum := total.(tree.Number)
	if !ok || !isNum {
		return Record{}, fmt.Errorf("%w: totalQuestions is not a number", ErrMalformedEnvelope)
	}
	r.TotalQuestions = int(n)
	return r, nil
}

func timeField(obj *tree.Object, key string) (int64, error) {
	v, _ := obj.Get(key)
	switch tv := v.(type) {
	case nil, tree.Null:
		return 0, nil
	case tree.Number:
		return int64(tv), nil
	}
	return 0, fmt.Errorf("%w: %s is not a number", ErrMalformedEnvelope, key)
}
