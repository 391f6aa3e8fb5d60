package survey

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/OFFIS-RIT/dematel/pkg/tree"
)

// Session is one respondent's questionnaire state.
type Session struct {
	ID           string
	ConfigDigest string
	BasicInfo    *tree.Object
	Answers      map[string]Answer
	StartTime    time.Time
	EndTime      time.Time
}

type sessionFile struct {
	SurveyID     string            `json:"surveyId"`
	ConfigDigest string            `json:"configDigest"`
	BasicInfo    json.RawMessage   `json:"basicInfo"`
	Answers      map[string]Answer `json:"answers"`
	StartTime    int64             `json:"startTime"`
	EndTime      int64             `json:"endTime"`
}

// ParseSession decodes a saved session. Times are Unix milliseconds; 0 means unset.
// Basic info keeps the field order of the document.
func ParseSession(data []byte) (*Session, error) {
	var f sessionFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}

	s := &Session{
		ID:           f.SurveyID,
		ConfigDigest: f.ConfigDigest,
		BasicInfo:    tree.NewObject(),
		Answers:      f.Answers,
		StartTime:    fromMillis(f.StartTime),
		EndTime:      fromMillis(f.EndTime),
	}
	if s.Answers == nil {
		s.Answers = make(map[string]Answer)
	}
	if len(f.BasicInfo) > 0 && string(f.BasicInfo) != "null" {
		info, err := tree.ParseObject(f.BasicInfo)
		if err != nil {
			return nil, fmt.Errorf("decode session basic info: %w", err)
		}
		s.BasicInfo = info
	}
	return s, nil
}

// LoadSession reads a saved session from path.
func LoadSession(path string) (*Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read session %s: %w", path, err)
	}
	return ParseSession(data)
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
