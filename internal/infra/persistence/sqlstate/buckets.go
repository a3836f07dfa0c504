// Package sqlstate maps snapshots onto the bucket rows of a state(bucket,
// payload) table shared by the SQL backends.
package sqlstate

import (
	"bytes"
	"encoding/json"
	"fmt"

	"familytree/internal/infra/persistence/jsonfile"
	"familytree/pkg/domain"
)

const (
	BucketMeta   = "meta"
	BucketPeople = "people"
)

// Buckets lists the bucket names in write order.
var Buckets = []string{BucketMeta, BucketPeople}

type meta struct {
	NextID int `json:"next_id"`
}

// Row is one bucket payload.
type Row struct {
	Bucket  string
	Payload []byte
}

// Encode splits a snapshot into rows, one per bucket.
func Encode(snapshot domain.Snapshot) ([]Row, error) {
	doc, err := jsonfile.Encode(snapshot)
	if err != nil {
		return nil, err
	}
	var parts struct {
		NextID int             `json:"next_id"`
		People json.RawMessage `json:"people"`
	}
	if err := json.Unmarshal(doc, &parts); err != nil {
		return nil, fmt.Errorf("split snapshot: %w", err)
	}
	metaPayload, err := json.Marshal(meta{NextID: parts.NextID})
	if err != nil {
		return nil, fmt.Errorf("encode meta: %w", err)
	}
	return []Row{
		{Bucket: BucketMeta, Payload: metaPayload},
		{Bucket: BucketPeople, Payload: compact(parts.People)},
	}, nil
}

// Decode reassembles rows into a snapshot and validates it with the same
// schema as the JSON file backend. No rows yields an empty snapshot; unknown
// buckets are ignored.
func Decode(rows []Row) (domain.Snapshot, error) {
	if len(rows) == 0 {
		return domain.EmptySnapshot(), nil
	}
	doc := struct {
		NextID int             `json:"next_id"`
		People json.RawMessage `json:"people"`
	}{NextID: 1, People: json.RawMessage("[]")}
	for _, row := range rows {
		switch row.Bucket {
		case BucketMeta:
			var m meta
			if err := json.Unmarshal(row.Payload, &m); err != nil {
				return domain.Snapshot{}, fmt.Errorf("decode %s: %w", row.Bucket, err)
			}
			doc.NextID = m.NextID
		case BucketPeople:
			if len(row.Payload) > 0 {
				doc.People = json.RawMessage(row.Payload)
			}
		}
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("assemble snapshot: %w", err)
	}
	return jsonfile.Decode(data)
}

func compact(raw json.RawMessage) []byte {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return append([]byte(nil), raw...)
	}
	return buf.Bytes()
}
