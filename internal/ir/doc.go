// Package ir is the canonical record form of built queries and schema
// snapshots.
//
// Records are serialized as RFC 8785 canonical JSON so that equal queries
// always produce equal bytes and equal content hashes. Query parameters are
// lowered to the constrained Value types on the way in:
//   - no floats: float parameters are written as their shortest decimal text
//   - no null: nil parameters are rejected
//   - strings are NFC normalized
package ir
