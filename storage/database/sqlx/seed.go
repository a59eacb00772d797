// Package sqlxrepos loads fixtures into the database with sqlx named statements.
package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/storage/database"
)

const (
	insertNode = `INSERT INTO nodes (id, kind, parent_id, name, code, image, created_at, updated_at)
VALUES (:id, :kind, :parent_id, :name, :code, :image, :created_at, :updated_at)`

	insertMark = `INSERT INTO marks (id, class_id, subject_id, student, score, max_score, created_at, updated_at)
VALUES (:id, :class_id, :subject_id, :student, :score, :max_score, :created_at, :updated_at)`

	insertRequest = `INSERT INTO requests (id, kind, scope_id, title, amount, requested_by, requested_by_name,
requested_by_email, status, remark, created_at, updated_at)
VALUES (:id, :kind, :scope_id, :title, :amount, :requested_by, :requested_by_name,
:requested_by_email, :status, :remark, :created_at, :updated_at)`
)

type (
	nodeRow struct {
		ID        string         `db:"id"`
		Kind      string         `db:"kind"`
		ParentID  sql.NullString `db:"parent_id"`
		Name      string         `db:"name"`
		Code      sql.NullString `db:"code"`
		Image     sql.NullString `db:"image"`
		CreatedAt time.Time      `db:"created_at"`
		UpdatedAt time.Time      `db:"updated_at"`
	}

	markRow struct {
		ID        string    `db:"id"`
		ClassID   string    `db:"class_id"`
		SubjectID string    `db:"subject_id"`
		Student   string    `db:"student"`
		Score     float64   `db:"score"`
		MaxScore  float64   `db:"max_score"`
		CreatedAt time.Time `db:"created_at"`
		UpdatedAt time.Time `db:"updated_at"`
	}

	requestRow struct {
		ID               string         `db:"id"`
		Kind             string         `db:"kind"`
		ScopeID          string         `db:"scope_id"`
		Title            string         `db:"title"`
		Amount           float64        `db:"amount"`
		RequestedBy      string         `db:"requested_by"`
		RequestedByName  sql.NullString `db:"requested_by_name"`
		RequestedByEmail sql.NullString `db:"requested_by_email"`
		Status           string         `db:"status"`
		Remark           sql.NullString `db:"remark"`
		CreatedAt        time.Time      `db:"created_at"`
		UpdatedAt        time.Time      `db:"updated_at"`
	}
)

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// Seed inserts f in a single transaction.
func Seed(ctx context.Context, db *sql.DB, f database.Fixture) error {
	tx, err := sqlx.NewDb(db, "postgres").BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "starting seed")
	}
	if err = seed(ctx, tx, f); err != nil {
		_ = tx.Rollback()
		return err
	}
	return errors.Wrap(tx.Commit(), "committing seed")
}

func seed(ctx context.Context, tx *sqlx.Tx, f database.Fixture) error {
	for _, n := range f.Nodes {
		row := nodeRow{
			ID:        n.ID,
			Kind:      string(n.Kind),
			ParentID:  nullString(n.ParentID),
			Name:      n.Name,
			Code:      nullString(n.Code),
			Image:     nullString(n.Image),
			CreatedAt: n.CreatedAt.UTC(),
			UpdatedAt: n.UpdatedAt.UTC(),
		}
		if _, err := tx.NamedExecContext(ctx, insertNode, row); err != nil {
			return errors.Wrapf(err, "inserting %s %q", n.Kind, n.Name)
		}
	}
	for _, m := range f.Marks {
		row := markRow{
			ID:        m.ID,
			ClassID:   m.ClassID,
			SubjectID: m.SubjectID,
			Student:   m.Student,
			Score:     m.Score,
			MaxScore:  m.MaxScore,
			CreatedAt: m.CreatedAt.UTC(),
			UpdatedAt: m.UpdatedAt.UTC(),
		}
		if _, err := tx.NamedExecContext(ctx, insertMark, row); err != nil {
			return errors.Wrapf(err, "inserting mark of %q", m.Student)
		}
	}
	for _, r := range f.Requests {
		row := requestRow{
			ID:               r.ID,
			Kind:             string(r.Kind),
			ScopeID:          r.ScopeID,
			Title:            r.Title,
			Amount:           r.Amount,
			RequestedBy:      r.RequestedBy,
			RequestedByName:  nullString(r.RequestedByName),
			RequestedByEmail: nullString(r.RequestedByEmail),
			Status:           string(r.Status),
			Remark:           nullString(r.Remark),
			CreatedAt:        r.CreatedAt.UTC(),
			UpdatedAt:        r.UpdatedAt.UTC(),
		}
		if _, err := tx.NamedExecContext(ctx, insertRequest, row); err != nil {
			return errors.Wrapf(err, "inserting request %q", r.Title)
		}
	}
	return nil
}
