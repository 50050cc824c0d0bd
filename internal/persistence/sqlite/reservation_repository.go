package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/example/resource-booking/internal/persistence"
)

// ReservationRepository implements persistence.ReservationRepository using
// SQLite. Device purposes live in a child table keyed by position so their
// order survives round trips.
type ReservationRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
	watch  *ReservationWatch
}

// NewReservationRepository creates a new SQLite reservation repository. The
// watch may be nil when no change feed is needed.
func NewReservationRepository(pool *ConnectionPool, watch *ReservationWatch) *ReservationRepository {
	return &ReservationRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
		watch:  watch,
	}
}

// CreateReservation inserts a reservation and its device purposes in one
// transaction.
func (r *ReservationRepository) CreateReservation(ctx context.Context, reservation persistence.Reservation) error {
	if reservation.ID == "" || reservation.UserID == "" || reservation.ResourceID == "" {
		return persistence.ErrConstraintViolation
	}
	if reservation.Quantity <= 0 {
		return persistence.ErrConstraintViolation
	}
	if !reservation.End.After(reservation.Start) {
		return persistence.ErrConstraintViolation
	}

	err := r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		query := `
			INSERT INTO reservations (id, user_id, booked_by, resource_id, resource_type, start_at, end_at, status, quantity, purpose, notes, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`

		if _, err := r.helper.ExecTx(tx, query,
			reservation.ID,
			reservation.UserID,
			reservation.BookedBy,
			reservation.ResourceID,
			reservation.ResourceType,
			reservation.Start.UTC().Format(time.RFC3339),
			reservation.End.UTC().Format(time.RFC3339),
			reservation.Status,
			reservation.Quantity,
			nullableString(reservation.Purpose),
			nullableString(reservation.Notes),
			reservation.CreatedAt.UTC().Format(time.RFC3339),
			reservation.UpdatedAt.UTC().Format(time.RFC3339),
		); err != nil {
			return r.mapper.MapError(err)
		}

		return r.replaceDevicePurposesTx(tx, reservation.ID, reservation.DevicePurposes)
	})
	if err != nil {
		return err
	}

	r.publishSnapshot(ctx)
	return nil
}

// UpdateReservation updates the mutable fields of an existing reservation.
func (r *ReservationRepository) UpdateReservation(ctx context.Context, reservation persistence.Reservation) error {
	if reservation.ID == "" {
		return persistence.ErrConstraintViolation
	}
	if reservation.Quantity <= 0 {
		return persistence.ErrConstraintViolation
	}

	err := r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		query := `
			UPDATE reservations
			SET status = ?, quantity = ?, purpose = ?, notes = ?, updated_at = ?
			WHERE id = ?
		`

		result, err := r.helper.ExecTx(tx, query,
			reservation.Status,
			reservation.Quantity,
			nullableString(reservation.Purpose),
			nullableString(reservation.Notes),
			reservation.UpdatedAt.UTC().Format(time.RFC3339),
			reservation.ID,
		)
		if err != nil {
			return r.mapper.MapError(err)
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if rowsAffected == 0 {
			return persistence.ErrNotFound
		}

		return r.replaceDevicePurposesTx(tx, reservation.ID, reservation.DevicePurposes)
	})
	if err != nil {
		return err
	}

	r.publishSnapshot(ctx)
	return nil
}

// GetReservation retrieves a reservation by ID.
func (r *ReservationRepository) GetReservation(ctx context.Context, id string) (persistence.Reservation, error) {
	if id == "" {
		return persistence.Reservation{}, persistence.ErrNotFound
	}

	query := `
		SELECT id, user_id, booked_by, resource_id, resource_type, start_at, end_at, status, quantity, purpose, notes, created_at, updated_at
		FROM reservations
		WHERE id = ?
	`

	reservation, err := scanReservation(r.helper.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.Reservation{}, persistence.ErrNotFound
		}
		return persistence.Reservation{}, r.mapper.MapError(err)
	}

	purposes, err := r.devicePurposes(ctx, id)
	if err != nil {
		return persistence.Reservation{}, err
	}
	reservation.DevicePurposes = purposes

	return reservation, nil
}

// ListReservations returns reservations matching the filter ordered by start
// time then ID. Time bounds select rows whose interval overlaps the given
// window.
func (r *ReservationRepository) ListReservations(ctx context.Context, filter persistence.ReservationFilter) ([]persistence.Reservation, error) {
	query := `
		SELECT id, user_id, booked_by, resource_id, resource_type, start_at, end_at, status, quantity, purpose, notes, created_at, updated_at
		FROM reservations
	`
	where := ""
	args := []any{}
	appendClause := func(clause string, value any) {
		if where == "" {
			where = " WHERE " + clause
		} else {
			where += " AND " + clause
		}
		args = append(args, value)
	}

	if filter.ResourceID != "" {
		appendClause("resource_id = ?", filter.ResourceID)
	}
	if filter.ResourceType != "" {
		appendClause("resource_type = ?", filter.ResourceType)
	}
	if filter.UserID != "" {
		appendClause("user_id = ?", filter.UserID)
	}
	if filter.StartsBefore != nil {
		appendClause("start_at < ?", filter.StartsBefore.UTC().Format(time.RFC3339))
	}
	if filter.EndsAfter != nil {
		appendClause("end_at > ?", filter.EndsAfter.UTC().Format(time.RFC3339))
	}

	rows, err := r.helper.Query(ctx, query+where+" ORDER BY start_at ASC, id ASC", args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var reservations []persistence.Reservation
	for rows.Next() {
		reservation, err := scanReservation(rows)
		if err != nil {
			return nil, r.mapper.MapError(err)
		}
		reservations = append(reservations, reservation)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}

	for i := range reservations {
		purposes, err := r.devicePurposes(ctx, reservations[i].ID)
		if err != nil {
			return nil, err
		}
		reservations[i].DevicePurposes = purposes
	}

	return reservations, nil
}

// DeleteReservation removes a reservation. Its device purposes are removed by
// the schema's cascade.
func (r *ReservationRepository) DeleteReservation(ctx context.Context, id string) error {
	if id == "" {
		return persistence.ErrNotFound
	}

	result, err := r.helper.Exec(ctx, "DELETE FROM reservations WHERE id = ?", id)
	if err != nil {
		return r.mapper.MapError(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return persistence.ErrNotFound
	}

	r.publishSnapshot(ctx)
	return nil
}

// publishSnapshot re-reads the full reservation list after a committed
// mutation and pushes it to watch subscribers. Best effort: a failed refetch
// skips the push, the next mutation supersedes it anyway.
func (r *ReservationRepository) publishSnapshot(ctx context.Context) {
	if !r.watch.hasSubscribers() {
		return
	}

	reservations, err := r.ListReservations(ctx, persistence.ReservationFilter{})
	if err != nil {
		return
	}
	r.watch.notify(reservations)
}

func (r *ReservationRepository) replaceDevicePurposesTx(tx *sql.Tx, reservationID string, purposes []string) error {
	if _, err := r.helper.ExecTx(tx, "DELETE FROM reservation_device_purposes WHERE reservation_id = ?", reservationID); err != nil {
		return r.mapper.MapError(err)
	}
	for position, purpose := range purposes {
		if _, err := r.helper.ExecTx(tx,
			"INSERT INTO reservation_device_purposes (reservation_id, position, purpose) VALUES (?, ?, ?)",
			reservationID, position, purpose,
		); err != nil {
			return r.mapper.MapError(err)
		}
	}
	return nil
}

func (r *ReservationRepository) devicePurposes(ctx context.Context, reservationID string) ([]string, error) {
	rows, err := r.helper.Query(ctx,
		"SELECT purpose FROM reservation_device_purposes WHERE reservation_id = ? ORDER BY position ASC",
		reservationID,
	)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var purposes []string
	for rows.Next() {
		var purpose string
		if err := rows.Scan(&purpose); err != nil {
			return nil, r.mapper.MapError(err)
		}
		purposes = append(purposes, purpose)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}

	return purposes, nil
}

func scanReservation(row rowScanner) (persistence.Reservation, error) {
	var reservation persistence.Reservation
	var startStr, endStr, createdAtStr, updatedAtStr string
	var purpose, notes sql.NullString

	if err := row.Scan(
		&reservation.ID,
		&reservation.UserID,
		&reservation.BookedBy,
		&reservation.ResourceID,
		&reservation.ResourceType,
		&startStr,
		&endStr,
		&reservation.Status,
		&reservation.Quantity,
		&purpose,
		&notes,
		&createdAtStr,
		&updatedAtStr,
	); err != nil {
		return persistence.Reservation{}, err
	}

	if purpose.Valid {
		reservation.Purpose = &purpose.String
	}
	if notes.Valid {
		reservation.Notes = &notes.String
	}

	var err error
	if reservation.Start, err = time.Parse(time.RFC3339, startStr); err != nil {
		return persistence.Reservation{}, fmt.Errorf("failed to parse start_at: %w", err)
	}
	if reservation.End, err = time.Parse(time.RFC3339, endStr); err != nil {
		return persistence.Reservation{}, fmt.Errorf("failed to parse end_at: %w", err)
	}
	if reservation.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr); err != nil {
		return persistence.Reservation{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if reservation.UpdatedAt, err = time.Parse(time.RFC3339, updatedAtStr); err != nil {
		return persistence.Reservation{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}

	return reservation, nil
}

func nullableString(value *string) sql.NullString {
	if value == nil || *value == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *value, Valid: true}
}
