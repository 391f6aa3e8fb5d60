// Package transport packs a session export into integrity-checked, compressed
// segments small enough for a QR symbol, and reassembles them.
package transport

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/OFFIS-RIT/dematel/pkg/logger"
	"github.com/OFFIS-RIT/dematel/pkg/shorten"
	"github.com/OFFIS-RIT/dematel/pkg/tree"
)

// Version tags the envelope layout.
const Version = "1.0"

const digestLen = 16

// Packer turns records into segments. The zero value is not usable; see NewPacker.
type Packer struct {
	Compressor Compressor
	Budget     int
	// NewGroupID names the segment group. Defaults to a random nanoid.
	NewGroupID func() (string, error)
}

// NewPacker returns a Packer using zlib and the given segment budget.
// A budget of 0 selects DefaultBudget.
func NewPacker(budget int) *Packer {
	if budget <= 0 {
		budget = DefaultBudget
	}
	return &Packer{Compressor: Zlib{}, Budget: budget}
}

// Packed is the result of Pack.
type Packed struct {
	GroupID  string
	Payload  string
	Segments []Segment
}

// Pack shortens, hashes, compresses and splits r. It either returns a complete
// segment set or an error.
func (p *Packer) Pack(r Record) (*Packed, error) {
	return p.PackValue(r.Tree())
}

// PackValue packs an arbitrary document.
func (p *Packer) PackValue(v tree.Value) (*Packed, error) {
	if p.Compressor == nil {
		return nil, ErrCompressionUnavailable
	}

	short := shorten.Shorten(v)
	data := tree.NewObject().
		Set("vObj", short.Value).
		Set("keyMap", short.KeyMap).
		Set("valMap", short.ValMap)

	digest, err := dataDigest(data)
	if err != nil {
		return nil, err
	}
	envelope := tree.NewObject().
		Set("data", data).
		Set("hash", tree.String(digest)).
		Set("v", tree.String(Version))
	text, err := tree.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncoding, err)
	}

	compressed, err := p.Compressor.Compress(text)
	if err != nil {
		return nil, fmt.Errorf("%w: compress: %v", ErrEncoding, err)
	}
	payload := base64.StdEncoding.EncodeToString(compressed)

	groupID, err := p.groupID()
	if err != nil {
		return nil, fmt.Errorf("%w: group id: %v", ErrEncoding, err)
	}

	budget := p.Budget
	if budget <= 0 {
		budget = DefaultBudget
	}
	parts := Split(payload, budget)
	segments := make([]Segment, len(parts))
	for i, part := range parts {
		segments[i] = Segment{GroupID: groupID, Index: i + 1, Total: len(parts), Part: part}
	}

	logger.Debug("[Transport] Packed record",
		"group", groupID,
		"keys_shortened", short.KeyMap.Len(),
		"values_shortened", short.ValMap.Len(),
		"envelope_bytes", len(text),
		"payload_chars", len(payload),
		"segments", len(segments),
	)

	return &Packed{GroupID: groupID, Payload: payload, Segments: segments}, nil
}

func (p *Packer) groupID() (string, error) {
	if p.NewGroupID != nil {
		return p.NewGroupID()
	}
	return gonanoid.New(10)
}

// dataDigest is the first 16 hex characters of the SHA-256 of the serialized data.
func dataDigest(data *tree.Object) (string, error) {
	text, err := tree.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrEncoding, err)
	}
	sum := sha256.Sum256(text)
	return hex.EncodeToString(sum[:])[:digestLen], nil
}
