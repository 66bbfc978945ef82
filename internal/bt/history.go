package bt

import "time"

// HistoryLedger records when each location root last completed a clean backup.
type HistoryLedger interface {
	// LastBackup returns the last successful backup instant for root,
	// or the Unix epoch if root has never been backed up.
	LastBackup(root string) (time.Time, error)

	// SetLastBackup records t as the last successful backup of root.
	SetLastBackup(root string, t time.Time) error

	// Remove forgets root.
	Remove(root string) error
}
