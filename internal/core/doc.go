// Package core runs the crew and certificate import pipeline.
//
// The package has no transport dependencies; the web handlers and the
// importctl CLI both drive it through [Service].
//
// # Pipeline
//
// Every upload moves through the same linear states:
//
//	uploaded -> decoded -> validated -> rejected | previewed | committed
//	                 \-> failed
//
//  1. [sheet.Decode] turns the buffer into rows, skipping the template hint row.
//  2. [validate.Rows] applies field specs and business rules to each row in parallel.
//  3. [Checker] looks up unique keys and crew references for the rows that
//     passed, one query per key over a single connection.
//  4. [Service.Validate] stops here and returns a preview. [Service.Import]
//     stops with a [ValidationFailedError] if any error was reported, otherwise
//     hands the valid rows to [Importer].
//
// # Commit semantics
//
// [Importer] opens one transaction and wraps each insert in a savepoint. A row
// that fails is rolled back alone and reported as a "general" error; the
// remaining rows commit. A failure outside a single row rolls everything back.
//
// # Errors
//
// Row-level problems are never returned as Go errors; they are collected into
// [ValidationResult] or [ImportResult]. Returned errors are pipeline-fatal and
// map to coded user messages through [MapError].
package core
