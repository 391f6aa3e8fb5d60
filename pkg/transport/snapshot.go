package transport

import (
	"fmt"

	"github.com/OFFIS-RIT/dematel/pkg/tree"
)

// Snapshot renders r as indented JSON for archiving. It is neither shortened nor compressed.
func Snapshot(r Record) ([]byte, error) {
	out, err := tree.MarshalIndent(r.Tree(), "  ")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncoding, err)
	}
	return out, nil
}

// ParseSnapshot reads a record written by Snapshot.
func ParseSnapshot(data []byte) (Record, error) {
	obj, err := tree.ParseObject(data)
	if err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	return RecordFromTree(obj)
}
