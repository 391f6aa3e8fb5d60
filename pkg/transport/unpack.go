package transport

import (
	"encoding/base64"
	"fmt"
	"sort"
	"strings"

	"github.com/OFFIS-RIT/dematel/pkg/logger"
	"github.com/OFFIS-RIT/dematel/pkg/shorten"
	"github.com/OFFIS-RIT/dematel/pkg/tree"
)

// Unpacker reassembles segment sets produced by a Packer.
type Unpacker struct {
	Compressor Compressor
}

// NewUnpacker returns an Unpacker using zlib.
func NewUnpacker() *Unpacker {
	return &Unpacker{Compressor: Zlib{}}
}

// Unpack restores the record carried by segments.
func (u *Unpacker) Unpack(segments []Segment) (Record, error) {
	v, err := u.UnpackValue(segments)
	if err != nil {
		return Record{}, err
	}
	obj, ok := v.(*tree.Object)
	if !ok {
		return Record{}, fmt.Errorf("%w: record is a %s", ErrMalformedEnvelope, v.Kind())
	}
	return RecordFromTree(obj)
}

// UnpackValue restores the document carried by segments.
func (u *Unpacker) UnpackValue(segments []Segment) (tree.Value, error) {
	if u.Compressor == nil {
		return nil, ErrCompressionUnavailable
	}

	payload, err := Assemble(segments)
	if err != nil {
		return nil, err
	}
	compressed, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: base64: %v", ErrMalformedEnvelope, err)
	}
	text, err := u.Compressor.Decompress(compressed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	return OpenEnvelope(text)
}

// OpenEnvelope checks the version and digest of envelope text and expands its data.
func OpenEnvelope(text []byte) (tree.Value, error) {
	envelope, err := tree.ParseObject(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	if v, _ := envelope.GetString("v"); v != Version {
		return nil, fmt.Errorf("%w: unsupported version %q", ErrMalformedEnvelope, v)
	}
	data, ok := envelope.GetObject("data")
	if !ok {
		return nil, fmt.Errorf("%w: missing data", ErrMalformedEnvelope)
	}
	stored, ok := envelope.GetString("hash")
	if !ok {
		return nil, fmt.Errorf("%w: missing hash", ErrMalformedEnvelope)
	}

	digest, err := dataDigest(data)
	if err != nil {
		return nil, err
	}
	if digest != stored {
		return nil, fmt.Errorf("%w: stored %s, computed %s", ErrIntegrityMismatch, stored, digest)
	}

	vObj, ok := data.Get("vObj")
	if !ok {
		return nil, fmt.Errorf("%w: missing vObj", ErrMalformedEnvelope)
	}
	keyMap, okK := data.GetObject("keyMap")
	valMap, okV := data.GetObject("valMap")
	if !okK || !okV {
		return nil, fmt.Errorf("%w: missing dictionary", ErrMalformedEnvelope)
	}
	return shorten.Expand(vObj, keyMap, valMap), nil
}

// Assemble joins the parts of one complete segment group in index order. Segments may
// arrive in any order, and a segment seen twice with the same part is ignored.
func Assemble(segments []Segment) (string, error) {
	if len(segments) == 0 {
		return "", fmt.Errorf("%w: no segments", ErrIncompleteTransport)
	}

	group := segments[0].GroupID
	total := segments[0].Total
	if total < 1 {
		return "", fmt.Errorf("%w: invalid total %d", ErrIncompleteTransport, total)
	}

	parts := make(map[int]string, total)
	for _, s := range segments {
		if s.GroupID != group {
			return "", fmt.Errorf("%w: mixed groups %q and %q", ErrIncompleteTransport, group, s.GroupID)
		}
		if s.Total != total {
			return "", fmt.Errorf("%w: segment %d reports total %d, expected %d", ErrIncompleteTransport, s.Index, s.Total, total)
		}
		if s.Index < 1 || s.Index > total {
			return "", fmt.Errorf("%w: index %d outside 1..%d", ErrIncompleteTransport, s.Index, total)
		}
		if prev, dup := parts[s.Index]; dup && prev != s.Part {
			return "", fmt.Errorf("%w: conflicting copies of segment %d", ErrIncompleteTransport, s.Index)
		}
		parts[s.Index] = s.Part
	}

	if len(parts) != total {
		return "", fmt.Errorf("%w: have %d of %d segments, missing %v", ErrIncompleteTransport, len(parts), total, missing(parts, total))
	}

	indexes := make([]int, 0, total)
	for i := range parts {
		indexes = append(indexes, i)
	}
	sort.Ints(indexes)

	var b strings.Builder
	for _, i := range indexes {
		b.WriteString(parts[i])
	}

	logger.Debug("[Transport] Assembled segments", "group", group, "segments", total, "payload_chars", b.Len())
	return b.String(), nil
}

func missing(parts map[int]string, total int) []int {
	var out []int
	for i := 1; i <= total; i++ {
		if _, ok := parts[i]; !ok {
			out = append(out, i)
		}
	}
	return out
}
