package domain

import "github.com/google/uuid"

// PayloadSourceKey is the payload field holding the passage origin.
const PayloadSourceKey = "source"

// pointNamespace scopes deterministic point IDs.
var pointNamespace = uuid.MustParse("6f1c7c84-2d1e-4a7e-9b52-4a0c1f3d8e21")

// CorpusRecord is one line of a corpus JSONL file.
type CorpusRecord struct {
	Text   string `json:"text"`
	Source string `json:"source,omitempty"`
}

// PointID derives a stable UUID from a passage source and content hash, so
// re-indexing the same passage overwrites rather than duplicates it.
func PointID(source, hash string) string {
	return uuid.NewSHA1(pointNamespace, []byte(source+"\x00"+hash)).String()
}
