// Package core provides the business logic for CSV import and export of CRM records.
//
// This package contains all domain logic independent of any transport. The
// HTTP API, the command line tool and the tests all drive the same [Service].
//
// # Architecture
//
// The package is organized around several key concepts:
//
//   - Schemas: each entity (leads, meetings) is described once by a [Schema]
//     and shared by import and export, so an exported file re-imports cleanly.
//   - Reconciler: decides per row whether to insert, update or skip.
//   - Service: the entry point for imports, exports, previews and the audit log.
//   - RecordStore: the persistence boundary, implemented by PostgreSQL,
//     SQLite and an in-memory store.
//
// # Schema Registry
//
// Entities are registered at init time using [Register]:
//
//	core.Register(&core.Schema{
//	    Entity:     "leads",
//	    IDField:    "id",
//	    Fields:     []core.FieldSpec{{Name: "id"}, {Name: "name", Required: true}, ...},
//	    NaturalKey: []string{"name", "company"},
//	})
//
// A schema may embed child records in a json-blob column (meeting action
// items). Children are stored in their own table and replaced as a set when
// the parent row carries the column.
//
// # Reconciliation
//
// Headers are mapped to canonical fields by name, label or synonym. Each row
// is normalized (dates, numbers, enums, principal references) and matched by
// id first, then by natural key:
//
//  1. id exists: the record is updated with the mapped fields only
//  2. natural key exists: the row is counted as a duplicate and skipped
//  3. otherwise: a new record is inserted
//
// Rows are processed in batches. Lookups run in parallel, writes are serial
// and guarded by a [KeyLocker], so the outcome never depends on batch size.
// A row failure is recorded against its line and the import continues.
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages using [MapError].
// Each error category has a unique code for support reference:
//
//   - CSV001-CSV005: File errors (format, size, encoding)
//   - MAP001-MAP002: Header mapping errors
//   - ROW001-ROW004: Row validation errors
//   - STO001-STO006: Store errors (permissions, duplicates, connections)
//   - IMP001-IMP006: Import errors (cancelled, busy, not found)
//   - AUD001: Audit log not persisted
//
// # Audit Logging
//
// Imports, exports, cancellations and permission failures are recorded with
// a severity level. Stores that persist the log implement [AuditReader] and
// [AuditPurger]; entries older than the configured retention are deleted by
// [Service.StartAuditRetention].
package core
