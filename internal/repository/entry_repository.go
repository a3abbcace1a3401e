// Package repository contains data access logic separated from HTTP handlers.
// This file holds the entry store: movies and series share the `entries`
// table and are told apart by the kind column.
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/iliyamo/movie-tracker/internal/model"
)

// ErrEntryNotFound is returned when no entry matches the given id.
var ErrEntryNotFound = errors.New("entry not found")

const entryColumns = `id, owner_id, kind, title, director, budget, location, duration,
	year_or_time, genre, rating, description, airing_status, total_seasons, created_at, updated_at`

// EntryRepo persists entries in MySQL.
type EntryRepo struct {
	db  *sql.DB
	now func() time.Time
}

// NewEntryRepo constructs an EntryRepo with the provided DB handle.
func NewEntryRepo(db *sql.DB) *EntryRepo {
	return &EntryRepo{db: db, now: now}
}

// now returns the current time at the precision of a DATETIME(6) column so
// that values read back compare equal to the ones written.
func now() time.Time { return time.Now().UTC().Truncate(time.Microsecond) }

// Insert validates e, assigns its ID and timestamps, and stores it.  A
// *model.ValidationError is returned before any SQL is executed when e is
// invalid.
func (r *EntryRepo) Insert(ctx context.Context, e *model.Entry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	e.ID = uuid.NewString()
	e.CreatedAt = r.now()
	e.UpdatedAt = e.CreatedAt

	const q = `INSERT INTO entries (` + entryColumns + `)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, q,
		e.ID, e.Owner, string(e.Kind), e.Title, e.Director, e.Budget, e.Location, e.Duration,
		e.YearOrTime, e.Genre, e.Rating, nullString(e.Description), nullString(string(e.AiringStatus)),
		nullInt(e.TotalSeasons), e.CreatedAt, e.UpdatedAt)
	if err != nil {
		e.ID = ""
		return errors.Wrap(err, "insert entry")
	}
	return nil
}

// FindByID fetches an entry by id regardless of owner.
func (r *EntryRepo) FindByID(ctx context.Context, id string) (*model.Entry, error) {
	return findByID(ctx, r.db, id)
}

// FindAllByOwner returns the entries owned by ownerID.  When kind is empty
// both variants are returned.  Ordering is not part of the contract.
func (r *EntryRepo) FindAllByOwner(ctx context.Context, ownerID string, kind model.Kind) ([]*model.Entry, error) {
	q := `SELECT ` + entryColumns + ` FROM entries WHERE owner_id = ?`
	args := []any{ownerID}
	if kind != "" {
		q += ` AND kind = ?`
		args = append(args, string(kind))
	}
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list entries")
	}
	defer rows.Close()

	out := make([]*model.Entry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan entry")
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "list entries")
	}
	return out, nil
}

// UpdateByID loads the entry, applies p, re-validates the merged document
// and writes it back with a fresh updated_at.  The read and the write are
// not atomic; concurrent updates to the same id are last-write-wins.
func (r *EntryRepo) UpdateByID(ctx context.Context, id string, p model.EntryPatch) (*model.Entry, error) {
	e, err := findByID(ctx, r.db, id)
	if err != nil {
		return nil, err
	}
	e.Apply(p)
	if err := e.Validate(); err != nil {
		return nil, err
	}
	e.UpdatedAt = r.now()

	const q = `UPDATE entries
	           SET title = ?, director = ?, budget = ?, location = ?, duration = ?, year_or_time = ?,
	               genre = ?, rating = ?, description = ?, airing_status = ?, total_seasons = ?, updated_at = ?
	           WHERE id = ?`
	res, err := r.db.ExecContext(ctx, q,
		e.Title, e.Director, e.Budget, e.Location, e.Duration, e.YearOrTime,
		e.Genre, e.Rating, nullString(e.Description), nullString(string(e.AiringStatus)), nullInt(e.TotalSeasons),
		e.UpdatedAt, e.ID)
	if err != nil {
		return nil, errors.Wrap(err, "update entry")
	}
	// MySQL reports 0 affected rows when nothing changed, so only a concurrent
	// delete is detected here by re-reading.
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := findByID(ctx, r.db, id); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// DeleteByID removes the entry and returns it as it was before deletion.
func (r *EntryRepo) DeleteByID(ctx context.Context, id string) (*model.Entry, error) {
	e, err := findByID(ctx, r.db, id)
	if err != nil {
		return nil, err
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM entries WHERE id = ?`, id)
	if err != nil {
		return nil, errors.Wrap(err, "delete entry")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrEntryNotFound
	}
	return e, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func findByID(ctx context.Context, db *sql.DB, id string) (*model.Entry, error) {
	const q = `SELECT ` + entryColumns + ` FROM entries WHERE id = ?`
	e, err := scanEntry(db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEntryNotFound
		}
		return nil, errors.Wrap(err, "find entry")
	}
	return e, nil
}

func scanEntry(row rowScanner) (*model.Entry, error) {
	var (
		e            model.Entry
		kind         string
		description  sql.NullString
		airingStatus sql.NullString
		totalSeasons sql.NullInt64
	)
	err := row.Scan(&e.ID, &e.Owner, &kind, &e.Title, &e.Director, &e.Budget, &e.Location, &e.Duration,
		&e.YearOrTime, &e.Genre, &e.Rating, &description, &airingStatus, &totalSeasons, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	e.Kind = model.Kind(kind)
	e.Description = description.String
	e.AiringStatus = model.AiringStatus(airingStatus.String)
	e.TotalSeasons = int(totalSeasons.Int64)
	return &e, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt(n int) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(n), Valid: n != 0}
}
