// ABOUTME: Source-scoped deletion for full reprocessing.
// ABOUTME: Cascades parent-to-children inside one transaction with row counts.
package storage

import "fmt"

// DeleteResult reports what DeleteBySource removed.
type DeleteResult struct {
	DeletedRecords int
	DeletedRelated int
}

// DeleteBySource removes every record a source contributed, children
// first so the counts are observable, all inside one transaction.
func (d *DB) DeleteBySource(source string) (*DeleteResult, error) {
	tx, err := d.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin delete transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res := &DeleteResult{}
	for _, table := range childTables {
		r, err := tx.Exec(
			"DELETE FROM "+table+" WHERE record_id IN (SELECT id FROM health_records WHERE source = ?)",
			source,
		)
		if err != nil {
			return nil, fmt.Errorf("delete from %s: %w", table, err)
		}
		n, _ := r.RowsAffected()
		res.DeletedRelated += int(n)
	}

	r, err := tx.Exec("DELETE FROM health_records WHERE source = ?", source)
	if err != nil {
		return nil, fmt.Errorf("delete from health_records: %w", err)
	}
	n, _ := r.RowsAffected()
	res.DeletedRecords = int(n)

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit delete transaction: %w", err)
	}
	return res, nil
}
