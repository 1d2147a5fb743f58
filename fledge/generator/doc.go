// Package generator provides utilities for template-based code generation
// with conflict resolution and rollback support.
//
// # Features
//
//   - Template rendering with naming helpers (pascalCase, snakeCase, plural, ...)
//   - Conflict resolution (interactive, --force, --skip)
//   - A ledger of created directories and files that can be rolled back
//
// # Ledger
//
// Record every filesystem change through a Ledger so a failed run can be
// undone:
//
//	ledger := generator.NewLedger(fs, log)
//	if _, err := ledger.MkdirAll("internal/contexts/invoice", 0o755); err != nil {
//	    return err
//	}
//	if err := ledger.WriteFile("internal/contexts/invoice/doc.go", content, 0o644); err != nil {
//	    report := ledger.Rollback()
//	    return errors.Join(err, report.Err())
//	}
//
// Rollback walks the entries in reverse: new files are deleted, overwritten
// files are restored from their backup, and directories are removed only
// when they are empty.
package generator
