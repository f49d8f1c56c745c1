// Package schema models the live table/column shape of a tenant database and
// derives a short deterministic fingerprint from it.
package schema

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

type Column struct {
	Name     string `json:"column_name"`
	DataType string `json:"data_type"`
	Nullable bool   `json:"nullable"`
	Comment  string `json:"comment,omitempty"`
}

type Table struct {
	Comment string   `json:"comment,omitempty"`
	Columns []Column `json:"columns"`
}

// Snapshot maps table name to its definition. It is produced fresh per
// generation request and never persisted.
type Snapshot map[string]Table

// FingerprintLength is the number of hex characters kept from the digest.
// Collisions would only cause a spurious cache miss or stale hit, so a short
// prefix is enough.
const FingerprintLength = 16

// Fingerprint derives the schema version for a snapshot. The result is
// invariant under table and column enumeration order. Only table presence,
// column names and declared types are folded in; comments and nullability do
// not change the version.
func Fingerprint(snapshot Snapshot) string {
	tableNames := make([]string, 0, len(snapshot))
	for name := range snapshot {
		tableNames = append(tableNames, name)
	}
	sort.Strings(tableNames)

	tokens := make([]string, 0, len(snapshot)*8)
	for _, tableName := range tableNames {
		tokens = append(tokens, "TABLE:"+tableName)

		columns := make([]Column, len(snapshot[tableName].Columns))
		copy(columns, snapshot[tableName].Columns)
		sort.Slice(columns, func(i, j int) bool { return columns[i].Name < columns[j].Name })
		for _, column := range columns {
			tokens = append(tokens, column.Name+":"+column.DataType)
		}
	}

	digest := sha256.Sum256([]byte(strings.Join(tokens, "|")))
	return hex.EncodeToString(digest[:])[:FingerprintLength]
}
