// Package core provides the roster ingestion pipeline.
//
// This package holds all domain logic independent of transport and
// storage. It is driven by the HTTP server, the CLI and tests alike.
//
// # Pipeline
//
// A run moves one uploaded file through four stages:
//
//  1. [ParseFile] sniffs CSV or XLSX, finds the header row within the
//     first [MaxHeaderSearchRows] rows and yields [RawRow] values keyed by
//     canonical [Column].
//  2. [Transformer.Transform] applies the field normalizers
//     ([SplitName], [NormalizeDate], [NormalizeCNIC], [NormalizePhone],
//     [NormalizeEmail] and the enum normalizers) and reports soft
//     failures as [FieldWarning].
//  3. [Resolver.Resolve] matches the record to an existing person by CNIC,
//     employee code or name plus date of birth, and builds a [Plan].
//  4. [Service.Ingest] commits each Plan through the [Store], one
//     transaction per row, and returns a [Report].
//
// # Fill-forward
//
// Incoming values only ever replace stored ones when they are present.
// A blank cell, a placeholder such as "N/A", or an unrecognised enum
// leaves the stored value untouched.
//
// # Dry runs
//
// With DryRun set nothing is written. Rows are still resolved against
// the store and an in-memory staging overlay, so the report counts what
// a real run would create or update.
//
// # Error Handling
//
// A file that cannot be read aborts the run with an [UnreadableFileError].
// Everything else is per row: a [RowError] skips the row and the run
// continues. Technical errors are mapped to user messages with [MapError].
package core
