package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/micro-ha/netduma-telemetry/internal/model"
)

var ErrNotFound = errors.New("not found")

func (r *Repository) ListRegistered(ctx context.Context) (map[string]model.DeviceRegistered, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT devid, name, icon, comment, created_at, updated_at FROM devices_registered`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := map[string]model.DeviceRegistered{}
	for rows.Next() {
		item, err := scanRegistered(rows.Scan)
		if err != nil {
			return nil, err
		}
		result[item.ID] = item
	}
	return result, rows.Err()
}

func (r *Repository) GetRegistered(ctx context.Context, devid string) (model.DeviceRegistered, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT devid, name, icon, comment, created_at, updated_at FROM devices_registered WHERE devid = ?`, devid)
	item, err := scanRegistered(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return model.DeviceRegistered{}, ErrNotFound
	}
	if err != nil {
		return model.DeviceRegistered{}, err
	}
	return item, nil
}

// UpsertRegistered sets only the provided fields, preserving the rest on
// an existing row.
func (r *Repository) UpsertRegistered(ctx context.Context, devid string, name, icon, comment *string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO devices_registered(devid, name, icon, comment, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(devid) DO UPDATE SET
			name=COALESCE(excluded.name, devices_registered.name),
			icon=COALESCE(excluded.icon, devices_registered.icon),
			comment=COALESCE(excluded.comment, devices_registered.comment),
			updated_at=excluded.updated_at`,
		devid, nullable(name), nullable(icon), nullable(comment), now, now,
	)
	return err
}

func (r *Repository) DeleteRegistered(ctx context.Context, devid string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM devices_registered WHERE devid = ?`, devid)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func scanRegistered(scan func(...any) error) (model.DeviceRegistered, error) {
	var (
		item                 model.DeviceRegistered
		name, icon, comment  sql.NullString
		createdAt, updatedAt string
	)
	if err := scan(&item.ID, &name, &icon, &comment, &createdAt, &updatedAt); err != nil {
		return model.DeviceRegistered{}, err
	}
	item.Name = strPtr(name)
	item.Icon = strPtr(icon)
	item.Comment = strPtr(comment)
	if ts, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		item.CreatedAt = ts.UTC()
	}
	if ts, err := time.Parse(time.RFC3339Nano, updatedAt); err == nil {
		item.UpdatedAt = ts.UTC()
	}
	return item, nil
}

func strPtr(value sql.NullString) *string {
	if !value.Valid {
		return nil
	}
	v := value.String
	return &v
}

func nullable(value *string) any {
	if value == nil {
		return nil
	}
	return *value
}
