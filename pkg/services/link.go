package services

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-metastore/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-metastore/pkg/database"
	"github.com/ekaya-inc/ekaya-metastore/pkg/metrics"
	"github.com/ekaya-inc/ekaya-metastore/pkg/models"
	"github.com/ekaya-inc/ekaya-metastore/pkg/repositories"
	"github.com/ekaya-inc/ekaya-metastore/pkg/schema"
)

// LinkService manages links: a connector bound to LINK input values.
type LinkService interface {
	// CreateLink persists the link and its values atomically. Values may
	// bind LINK inputs of the connector or of the driver.
	CreateLink(ctx context.Context, name string, configurableID models.ConfigurableID, values models.InputValues, creator string) (models.LinkID, error)

	// UpdateLink replaces the whole value set of a link.
	UpdateLink(ctx context.Context, id models.LinkID, values models.InputValues, updater string) error

	// DeleteLink removes a link no job references.
	DeleteLink(ctx context.Context, id models.LinkID) error

	// SetEnabled toggles the link without touching its values.
	SetEnabled(ctx context.Context, id models.LinkID, enabled bool, user string) error

	// GetLink returns the link with its values.
	GetLink(ctx context.Context, id models.LinkID) (*models.Link, error)

	// GetLinkByName returns the link with its values.
	GetLinkByName(ctx context.Context, name string) (*models.Link, error)

	// ListLinks returns every link without values, ordered by id.
	ListLinks(ctx context.Context) ([]models.Link, error)

	// ListLinksForConfigurable returns the links of a connector without values.
	ListLinksForConfigurable(ctx context.Context, id models.ConfigurableID) ([]models.Link, error)

	// LinkForm returns the connector form followed by the driver form, each
	// with the link's current values.
	LinkForm(ctx context.Context, id models.LinkID) ([]models.Form, error)
}

type linkService struct {
	base
}

// NewLinkService creates a new link service.
func NewLinkService(db *database.DB, repos *repositories.Registry, opts Options, recorder *metrics.Recorder, logger *zap.Logger) LinkService {
	return &linkService{base: newBase(db, repos, opts, recorder, logger, "links")}
}

var _ LinkService = (*linkService)(nil)

func (s *linkService) CreateLink(ctx context.Context, name string, configurableID models.ConfigurableID, values models.InputValues, creator string) (id models.LinkID, err error) {
	defer s.metrics.Track("link.create")(&err)

	now := s.opts.now()
	link := &models.Link{
		Name:           name,
		ConfigurableID: configurableID,
		CreationUser:   creator,
		CreationDate:   now,
		UpdateUser:     creator,
		UpdateDate:     now,
		Enabled:        true,
	}
	if err := validateStruct("link", name, link); err != nil {
		return 0, err
	}

	err = s.db.WithTx(ctx, func(ctx context.Context) error {
		c, err := getConfigurableRef(ctx, s.repos.Configurables, configurableID)
		if err != nil {
			return err
		}
		if c.Type != models.ConfigurableConnector {
			return apperrors.Validation("link", name, "configurable %q is not a connector", c.Name)
		}
		stored, err := s.serializeValues(ctx, c.ID, name, values)
		if err != nil {
			return err
		}
		if err := s.repos.Links.Create(ctx, link); err != nil {
			return err
		}
		return s.repos.LinkValues.Replace(ctx, int64(link.ID), stored)
	})
	if err != nil {
		return 0, err
	}

	s.logger.Info("Created link",
		zap.String("name", link.Name),
		zap.Int64("id", int64(link.ID)),
		zap.Int("values", len(values)))
	return link.ID, nil
}

func (s *linkService) serializeValues(ctx context.Context, connector models.ConfigurableID, name string, values models.InputValues) (map[models.InputID]string, error) {
	scope, err := linkScope(ctx, s.repos, connector)
	if err != nil {
		return nil, err
	}
	return scope.serialize(ctx, s.repos.Inputs, "link", name, values, schema.TableLinkInput, "SQ_LNKI_VALUE")
}

func (s *linkService) UpdateLink(ctx context.Context, id models.LinkID, values models.InputValues, updater string) (err error) {
	defer s.metrics.Track("link.update")(&err)

	if err := validateUser("link", id.String(), updater, schema.TableLink, "SQ_LNK_UPDATE_USER"); err != nil {
		return err
	}
	return s.db.WithTx(ctx, func(ctx context.Context) error {
		link, err := s.repos.Links.Get(ctx, id)
		if err != nil {
			return err
		}
		stored, err := s.serializeValues(ctx, link.ConfigurableID, link.Name, values)
		if err != nil {
			return err
		}
		if err := s.repos.LinkValues.Replace(ctx, int64(id), stored); err != nil {
			return err
		}
		return s.repos.Links.Touch(ctx, id, updater, s.opts.now())
	})
}

func (s *linkService) DeleteLink(ctx context.Context, id models.LinkID) (err error) {
	defer s.metrics.Track("link.delete")(&err)

	err = s.db.WithTx(ctx, func(ctx context.Context) error {
		link, err := s.repos.Links.Get(ctx, id)
		if err != nil {
			return err
		}
		jobs, err := s.repos.Links.CountJobs(ctx, id)
		if err != nil {
			return err
		}
		if jobs > 0 {
			return apperrors.ReferentialIntegrity("link", link.Name, "used by %d job(s)", jobs)
		}
		if err := s.repos.LinkValues.DeleteAll(ctx, int64(id)); err != nil {
			return err
		}
		return s.repos.Links.Delete(ctx, id)
	})
	if err != nil {
		return err
	}

	s.logger.Info("Deleted link", zap.Int64("id", int64(id)))
	return nil
}

func (s *linkService) SetEnabled(ctx context.Context, id models.LinkID, enabled bool, user string) (err error) {
	defer s.metrics.Track("link.set_enabled")(&err)

	if err := validateUser("link", id.String(), user, schema.TableLink, "SQ_LNK_UPDATE_USER"); err != nil {
		return err
	}
	return s.repos.Links.SetEnabled(ctx, id, enabled, user, s.opts.now())
}

func (s *linkService) GetLink(ctx context.Context, id models.LinkID) (link *models.Link, err error) {
	defer s.metrics.Track("link.get")(&err)

	link, err = s.repos.Links.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.withValues(ctx, link)
}

func (s *linkService) GetLinkByName(ctx context.Context, name string) (link *models.Link, err error) {
	defer s.metrics.Track("link.get")(&err)

	link, err = s.repos.Links.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}
	return s.withValues(ctx, link)
}

func (s *linkService) withValues(ctx context.Context, link *models.Link) (*models.Link, error) {
	values, err := loadValues(ctx, s.repos, s.repos.LinkValues, int64(link.ID))
	if err != nil {
		return nil, err
	}
	link.Values = values
	return link, nil
}

func (s *linkService) ListLinks(ctx context.Context) (out []models.Link, err error) {
	defer s.metrics.Track("link.list")(&err)
	return s.repos.Links.List(ctx)
}

func (s *linkService) ListLinksForConfigurable(ctx context.Context, id models.ConfigurableID) (out []models.Link, err error) {
	defer s.metrics.Track("link.list")(&err)
	return s.repos.Links.ListForConfigurable(ctx, id)
}

func (s *linkService) LinkForm(ctx context.Context, id models.LinkID) (forms []models.Form, err error) {
	defer s.metrics.Track("link.form")(&err)

	link, err := s.GetLink(ctx, id)
	if err != nil {
		return nil, err
	}
	connector, err := s.repos.Configurables.Get(ctx, link.ConfigurableID)
	if err != nil {
		return nil, err
	}
	form, err := buildForm(ctx, s.repos, connector, models.ConfigLink, "", link.Values)
	if err != nil {
		return nil, err
	}
	forms = append(forms, *form)

	driver, err := findDriver(ctx, s.repos.Configurables)
	if err != nil {
		return nil, err
	}
	if driver != nil {
		form, err := buildForm(ctx, s.repos, driver, models.ConfigLink, "", link.Values)
		if err != nil {
			return nil, err
		}
		forms = append(forms, *form)
	}
	return forms, nil
}

// getLinkRef loads a link referenced by a job.
func getLinkRef(ctx context.Context, repo repositories.LinkRepository, id models.LinkID) (*models.Link, error) {
	link, err := repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.UnknownReference("link", id.String())
		}
		return nil, err
	}
	return link, nil
}

func validateUser(entity, key, user, table, column string) error {
	if !fitsColumn(user, table, column) {
		return apperrors.Validation(entity, key, "user exceeds %d characters", schema.Width(table, column))
	}
	return nil
}
