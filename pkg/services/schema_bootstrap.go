package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-metastore/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-metastore/pkg/database"
	"github.com/ekaya-inc/ekaya-metastore/pkg/metrics"
	"github.com/ekaya-inc/ekaya-metastore/pkg/models"
	"github.com/ekaya-inc/ekaya-metastore/pkg/repositories"
	"github.com/ekaya-inc/ekaya-metastore/pkg/schema"
)

// SchemaService installs and checks the repository layout.
type SchemaService interface {
	// Install creates the layout, seeds the directions and records the
	// layout version in one transaction. Installing twice is a no-op.
	Install(ctx context.Context) error

	// Verify returns the recorded layout version. A missing layout or a
	// different version is an invalid state.
	Verify(ctx context.Context) (string, error)

	// DDL returns the statements Install runs on a fresh store.
	DDL() []string

	// Tables returns the layout.
	Tables() []schema.Table
}

type schemaService struct {
	base
}

// NewSchemaService creates a new schema bootstrap service.
func NewSchemaService(db *database.DB, repos *repositories.Registry, opts Options, recorder *metrics.Recorder, logger *zap.Logger) SchemaService {
	return &schemaService{base: newBase(db, repos, opts, recorder, logger, "schema")}
}

var _ SchemaService = (*schemaService)(nil)

func (s *schemaService) DDL() []string {
	return schema.CreateStatements(s.db.Dialect(), schema.Tables)
}

func (s *schemaService) Tables() []schema.Table {
	return schema.Tables
}

func (s *schemaService) Install(ctx context.Context) (err error) {
	defer s.metrics.Track("schema.install")(&err)

	created := false
	err = s.db.WithTx(ctx, func(ctx context.Context) error {
		installed, err := s.db.TableExists(ctx, schema.TableSystem)
		if err != nil {
			return fmt.Errorf("failed to check for existing layout: %w", err)
		}
		if installed {
			if err := s.checkVersion(ctx); err != nil && !errors.Is(err, apperrors.ErrNotFound) {
				return err
			}
		} else {
			if err := s.createTables(ctx); err != nil {
				return err
			}
			created = true
		}
		if err := s.seedDirections(ctx); err != nil {
			return err
		}
		return s.repos.System.Set(ctx, schema.VersionKey, schema.Version)
	})
	if err != nil {
		return err
	}

	if created {
		s.logger.Info("Installed repository layout",
			zap.String("driver", s.db.Dialect().Name()),
			zap.String("version", schema.Version),
			zap.Int("tables", len(schema.Tables)))
	} else {
		s.logger.Debug("Repository layout already installed", zap.String("version", schema.Version))
	}
	return nil
}

func (s *schemaService) createTables(ctx context.Context) error {
	conn := s.db.Conn(ctx)
	for _, stmt := range s.DDL() {
		if rest, ok := strings.CutPrefix(stmt, "CREATE SCHEMA "); ok {
			stmt = "CREATE SCHEMA IF NOT EXISTS " + rest
		}
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *schemaService) seedDirections(ctx context.Context) error {
	for _, d := range []models.Direction{models.DirectionFrom, models.DirectionTo} {
		_, err := s.repos.Directions.GetByName(ctx, d)
		if err == nil {
			continue
		}
		if !errors.Is(err, apperrors.ErrNotFound) {
			return err
		}
		if _, err := s.repos.Directions.Create(ctx, d); err != nil {
			return err
		}
	}
	return nil
}

// checkVersion fails unless the recorded version matches this build.
func (s *schemaService) checkVersion(ctx context.Context) error {
	v, err := s.repos.System.Get(ctx, schema.VersionKey)
	if err != nil {
		return err
	}
	if v != schema.Version {
		return apperrors.InvalidState("schema", v, "layout version %s does not match supported version %s", v, schema.Version)
	}
	return nil
}

func (s *schemaService) Verify(ctx context.Context) (version string, err error) {
	defer s.metrics.Track("schema.verify")(&err)

	installed, err := s.db.TableExists(ctx, schema.TableSystem)
	if err != nil {
		return "", fmt.Errorf("failed to check for layout: %w", err)
	}
	if !installed {
		return "", apperrors.InvalidState("schema", s.db.Dialect().Schema(), "repository layout is not installed")
	}
	if err := s.checkVersion(ctx); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return "", apperrors.InvalidState("schema", schema.VersionKey, "layout version is not recorded")
		}
		return "", err
	}
	return schema.Version, nil
}
