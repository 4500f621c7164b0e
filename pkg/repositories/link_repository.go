package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ekaya-inc/ekaya-metastore/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-metastore/pkg/database"
	"github.com/ekaya-inc/ekaya-metastore/pkg/models"
)

// LinkRepository provides access to SQ_LINK.
type LinkRepository interface {
	Create(ctx context.Context, link *models.Link) error
	Get(ctx context.Context, id models.LinkID) (*models.Link, error)
	GetByName(ctx context.Context, name string) (*models.Link, error)
	List(ctx context.Context) ([]models.Link, error)
	ListForConfigurable(ctx context.Context, id models.ConfigurableID) ([]models.Link, error)
	// Touch stamps the updater and update date.
	Touch(ctx context.Context, id models.LinkID, user string, at time.Time) error
	SetEnabled(ctx context.Context, id models.LinkID, enabled bool, user string, at time.Time) error
	CountJobs(ctx context.Context, id models.LinkID) (int, error)
	Delete(ctx context.Context, id models.LinkID) error
}

type linkRepository struct {
	db *database.DB
}

// NewLinkRepository creates a new link repository.
func NewLinkRepository(db *database.DB) LinkRepository {
	return &linkRepository{db: db}
}

var _ LinkRepository = (*linkRepository)(nil)

const linkColumns = `{SQ_LNK_ID}, {SQ_LNK_NAME}, {SQ_LNK_CONFIGURABLE}, {SQ_LNK_CREATION_USER}, {SQ_LNK_CREATION_DATE},
	{SQ_LNK_UPDATE_USER}, {SQ_LNK_UPDATE_DATE}, {SQ_LNK_ENABLED}`

func (r *linkRepository) Create(ctx context.Context, link *models.Link) error {
	err := r.db.Conn(ctx).QueryRowContext(ctx,
		r.db.SQL(`INSERT INTO {SQ_LINK} ({SQ_LNK_NAME}, {SQ_LNK_CONFIGURABLE}, {SQ_LNK_CREATION_USER}, {SQ_LNK_CREATION_DATE},
			{SQ_LNK_UPDATE_USER}, {SQ_LNK_UPDATE_DATE}, {SQ_LNK_ENABLED})
			VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING {SQ_LNK_ID}`),
		link.Name, int64(link.ConfigurableID),
		nullString(link.CreationUser), nullTime(link.CreationDate),
		nullString(link.UpdateUser), nullTime(link.UpdateDate),
		link.Enabled,
	).Scan(&link.ID)
	if err != nil {
		if appErr := classifyWrite(r.db, err, "link", link.Name); appErr != nil {
			return appErr
		}
		return fmt.Errorf("failed to create link: %w", err)
	}
	return nil
}

func (r *linkRepository) Get(ctx context.Context, id models.LinkID) (*models.Link, error) {
	return r.getOne(ctx, "{SQ_LNK_ID}", int64(id), id.String())
}

func (r *linkRepository) GetByName(ctx context.Context, name string) (*models.Link, error) {
	return r.getOne(ctx, "{SQ_LNK_NAME}", name, name)
}

func (r *linkRepository) getOne(ctx context.Context, column string, arg any, key string) (*models.Link, error) {
	row := r.db.Conn(ctx).QueryRowContext(ctx,
		r.db.SQL("SELECT "+linkColumns+" FROM {SQ_LINK} WHERE "+column+" = ?"), arg)
	link, err := scanLink(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound("link", key)
		}
		return nil, fmt.Errorf("failed to get link: %w", err)
	}
	return link, nil
}

func (r *linkRepository) List(ctx context.Context) ([]models.Link, error) {
	return r.list(ctx, "SELECT "+linkColumns+" FROM {SQ_LINK} ORDER BY {SQ_LNK_ID}")
}

func (r *linkRepository) ListForConfigurable(ctx context.Context, id models.ConfigurableID) ([]models.Link, error) {
	return r.list(ctx, "SELECT "+linkColumns+" FROM {SQ_LINK} WHERE {SQ_LNK_CONFIGURABLE} = ? ORDER BY {SQ_LNK_ID}", int64(id))
}

func (r *linkRepository) list(ctx context.Context, tmpl string, args ...any) ([]models.Link, error) {
	rows, err := r.db.Conn(ctx).QueryContext(ctx, r.db.SQL(tmpl), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list links: %w", err)
	}
	defer rows.Close()

	var out []models.Link
	for rows.Next() {
		link, err := scanLink(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan link: %w", err)
		}
		out = append(out, *link)
	}
	return out, rows.Err()
}

func (r *linkRepository) Touch(ctx context.Context, id models.LinkID, user string, at time.Time) error {
	res, err := r.db.Conn(ctx).ExecContext(ctx,
		r.db.SQL("UPDATE {SQ_LINK} SET {SQ_LNK_UPDATE_USER} = ?, {SQ_LNK_UPDATE_DATE} = ? WHERE {SQ_LNK_ID} = ?"),
		nullString(user), nullTime(at), int64(id))
	return r.checkUpdated(res, err, id)
}

func (r *linkRepository) SetEnabled(ctx context.Context, id models.LinkID, enabled bool, user string, at time.Time) error {
	res, err := r.db.Conn(ctx).ExecContext(ctx,
		r.db.SQL(`UPDATE {SQ_LINK} SET {SQ_LNK_ENABLED} = ?, {SQ_LNK_UPDATE_USER} = ?, {SQ_LNK_UPDATE_DATE} = ?
			WHERE {SQ_LNK_ID} = ?`),
		enabled, nullString(user), nullTime(at), int64(id))
	return r.checkUpdated(res, err, id)
}

func (r *linkRepository) checkUpdated(res sql.Result, err error, id models.LinkID) error {
	if err != nil {
		return fmt.Errorf("failed to update link: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.NotFound("link", id.String())
	}
	return nil
}

func (r *linkRepository) CountJobs(ctx context.Context, id models.LinkID) (int, error) {
	var n int
	err := r.db.Conn(ctx).QueryRowContext(ctx,
		r.db.SQL("SELECT COUNT(*) FROM {SQ_JOB} WHERE {SQB_FROM_LINK} = ? OR {SQB_TO_LINK} = ?"),
		int64(id), int64(id)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count jobs: %w", err)
	}
	return n, nil
}

func (r *linkRepository) Delete(ctx context.Context, id models.LinkID) error {
	res, err := r.db.Conn(ctx).ExecContext(ctx, r.db.SQL("DELETE FROM {SQ_LINK} WHERE {SQ_LNK_ID} = ?"), int64(id))
	if err != nil {
		if appErr := classifyDelete(r.db, err, "link", id.String()); appErr != nil {
			return appErr
		}
		return fmt.Errorf("failed to delete link: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.NotFound("link", id.String())
	}
	return nil
}

func scanLink(row rowScanner) (*models.Link, error) {
	var l models.Link
	var creator, updater sql.NullString
	var created, updated sql.NullTime
	var enabled sql.NullBool
	if err := row.Scan(&l.ID, &l.Name, &l.ConfigurableID, &creator, &created, &updater, &updated, &enabled); err != nil {
		return nil, err
	}
	l.CreationUser = creator.String
	l.CreationDate = fromNullTime(created)
	l.UpdateUser = updater.String
	l.UpdateDate = fromNullTime(updated)
	l.Enabled = enabled.Bool
	return &l, nil
}
