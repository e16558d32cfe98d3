package checkpoint

import (
	"encoding/json"
	"fmt"

	"github.com/foxhunt72/bscp/internal/digest"
)

type schema struct {
	version int
	key     func(name string) string
	encode  func(cp *Checkpoint) ([]byte, error)
	decode  func(data []byte) (*Checkpoint, error)
}

// schemas is ordered by load preference, newest first.
var schemas = []schema{
	{version: 2, key: func(name string) string { return name + ".v2" }, encode: encodeV2, decode: decodeV2},
	{version: 1, key: func(name string) string { return name }, encode: encodeV1, decode: decodeV1},
}

type payloadV2 struct {
	Version  int           `json:"version"`
	Digests  digest.Vector `json:"digests"`
	Position uint64        `json:"position"`
	Index    uint64        `json:"index"`
}

func encodeV2(cp *Checkpoint) ([]byte, error) {
	return json.Marshal(payloadV2{Version: 2, Digests: cp.Digests, Position: cp.Position, Index: cp.Index})
}

func decodeV2(data []byte) (*Checkpoint, error) {
	var p payloadV2
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	if p.Version != 2 {
		return nil, fmt.Errorf("unexpected version %d", p.Version)
	}
	if p.Digests == nil {
		return nil, fmt.Errorf("missing digests")
	}
	return &Checkpoint{Digests: p.Digests, Position: p.Position, Index: p.Index}, nil
}

func encodeV1(cp *Checkpoint) ([]byte, error) {
	return json.Marshal(cp.Digests)
}

func decodeV1(data []byte) (*Checkpoint, error) {
	var v digest.Vector
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	if v == nil {
		return nil, fmt.Errorf("missing digests")
	}
	return &Checkpoint{Digests: v}, nil
}
