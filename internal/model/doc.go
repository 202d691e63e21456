// Package model defines the archived record types shared by the rest of the
// archiver: posts, their authors, the references between posts, and the
// entries handed back to callers.
//
// This package contains type definitions and small helpers only. All other
// internal packages import model; model imports nothing internal.
//
// Key constraints:
//   - Records are immutable once archived. Nothing here mutates a stored record.
//   - Identifiers are uint64 and travel as decimal strings in JSON.
//   - Timestamps exchanged with the origin have second precision and a fixed offset.
package model
