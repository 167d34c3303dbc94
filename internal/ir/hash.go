package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content hashes. The version suffix allows a later
// change of encoding.
const (
	DomainQuery  = "eqb/query/v1"
	DomainSchema = "eqb/schema/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data). The null separator
// keeps the domain and data boundary unambiguous.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// QueryRecord is the canonical form of a built query.
type QueryRecord struct {
	Text       string
	Parameters Object
}

// NewQueryRecord lowers a built query's text and parameters.
func NewQueryRecord(text string, params map[string]any) (QueryRecord, error) {
	obj, err := FromParameters(params)
	if err != nil {
		return QueryRecord{}, fmt.Errorf("query record: %w", err)
	}
	return QueryRecord{Text: text, Parameters: obj}, nil
}

// Object is the record as a canonical object.
func (r QueryRecord) Object() Object {
	params := r.Parameters
	if params == nil {
		params = Object{}
	}
	return Object{
		"text":       String(r.Text),
		"parameters": params,
	}
}

// Canonical returns the record's canonical JSON.
func (r QueryRecord) Canonical() ([]byte, error) {
	return MarshalCanonical(r.Object())
}

// Hash is the record's content hash. Queries with equal text and equal
// parameters hash equally.
func (r QueryRecord) Hash() (string, error) {
	data, err := r.Canonical()
	if err != nil {
		return "", fmt.Errorf("query hash: %w", err)
	}
	return hashWithDomain(DomainQuery, data), nil
}

// SchemaHash hashes a canonical schema snapshot.
func SchemaHash(canonical []byte) string {
	return hashWithDomain(DomainSchema, canonical)
}
