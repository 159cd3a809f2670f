/*
notifications.go - Notification queries beyond plain CRUD

PURPOSE:
  Per-person inbox reads. Creation and read-marking ride the generic store;
  this file holds the filtered query the store engine does not cover.

SEE ALSO:
  - descriptors.go: NotificationDescriptor
  - types.go: Notification
*/
package fleet

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/warp/fleet-engine/generic"
)

// NotificationsByPersonnel returns one person's notifications, newest first.
func NotificationsByPersonnel(ctx context.Context, db *sql.DB, personnelID int64) ([]Notification, error) {
	q := generic.QuerierFrom(ctx, db)
	rows, err := q.QueryContext(ctx, `
		SELECT id, personnel_id, message, sent_at, read
		FROM notifications
		WHERE personnel_id = ?
		ORDER BY sent_at DESC, id DESC
	`, personnelID)
	if err != nil {
		return nil, fmt.Errorf("notifications by personnel: %w", err)
	}
	defer rows.Close()

	desc := NotificationDescriptor()
	var out []Notification
	for rows.Next() {
		n, err := desc.Scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}
