package repositories

import (
	"database/sql"
	"strings"
	"time"

	"github.com/ekaya-inc/ekaya-metastore/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-metastore/pkg/database"
)

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t.UTC(), Valid: !t.IsZero()}
}

func fromNullTime(t sql.NullTime) time.Time {
	if !t.Valid {
		return time.Time{}
	}
	return t.Time.UTC()
}

// placeholders returns "?, ?, ?" for n parameters.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}

// classifyWrite maps constraint violations raised by an insert or update.
// A unique violation is a duplicate of entity/key; a foreign key violation
// means a referenced row does not exist.
func classifyWrite(db *database.DB, err error, entity, key string) error {
	v, ok := db.Violation(err)
	if !ok {
		return nil
	}
	switch v.Kind {
	case database.ViolationUnique:
		return apperrors.DuplicateName(entity, key, v.Constraint, err)
	case database.ViolationForeignKey:
		e := apperrors.UnknownReference(entity, key)
		e.Constraint = v.Constraint
		e.Err = err
		return e
	}
	return nil
}

// classifyDelete maps a foreign key violation raised by a delete to a
// referential integrity error.
func classifyDelete(db *database.DB, err error, entity, key string) error {
	v, ok := db.Violation(err)
	if !ok || v.Kind != database.ViolationForeignKey {
		return nil
	}
	e := apperrors.ReferentialIntegrity(entity, key, "still referenced")
	e.Constraint = v.Constraint
	e.Err = err
	return e
}
