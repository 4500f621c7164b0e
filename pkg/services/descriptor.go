package services

import (
	"context"
	"errors"
	"slices"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-metastore/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-metastore/pkg/database"
	"github.com/ekaya-inc/ekaya-metastore/pkg/metrics"
	"github.com/ekaya-inc/ekaya-metastore/pkg/models"
	"github.com/ekaya-inc/ekaya-metastore/pkg/repositories"
	"github.com/ekaya-inc/ekaya-metastore/pkg/schema"
)

// DescriptorService defines the configs and inputs a configurable exposes.
// Descriptors are append-only: there is no update, and a descriptor that
// stored values reference cannot be deleted.
type DescriptorService interface {
	// DefineConfig adds a config to a configurable. A nil configurableID
	// defines a driver-level config.
	DefineConfig(ctx context.Context, configurableID *models.ConfigurableID, category models.ConfigType, name string, ordinal int) (models.ConfigID, error)

	// DefineInput adds an input to in.ConfigID.
	DefineInput(ctx context.Context, in models.Input) (models.InputID, error)

	// BindConfigDirection scopes a connector config to a direction.
	// Binding the same pair twice is a no-op.
	BindConfigDirection(ctx context.Context, configID models.ConfigID, directionID models.DirectionID) error

	// ConfigsFor returns the configs of one category in ordinal order.
	ConfigsFor(ctx context.Context, configurableID models.ConfigurableID, category models.ConfigType) ([]models.Config, error)

	// InputsFor returns the inputs of a config in ordinal order.
	InputsFor(ctx context.Context, configID models.ConfigID) ([]models.Input, error)

	GetInput(ctx context.Context, id models.InputID) (*models.Input, error)

	// DeleteConfig removes an unreferenced config with its inputs.
	DeleteConfig(ctx context.Context, id models.ConfigID) error

	// DeleteInput removes an unreferenced input.
	DeleteInput(ctx context.Context, id models.InputID) error

	// Form returns the configs of one category with their inputs.
	Form(ctx context.Context, configurableID models.ConfigurableID, category models.ConfigType) (*models.Form, error)
}

type descriptorService struct {
	base
}

// NewDescriptorService creates a new config and input descriptor service.
func NewDescriptorService(db *database.DB, repos *repositories.Registry, opts Options, recorder *metrics.Recorder, logger *zap.Logger) DescriptorService {
	return &descriptorService{base: newBase(db, repos, opts, recorder, logger, "descriptors")}
}

var _ DescriptorService = (*descriptorService)(nil)

func (s *descriptorService) DefineConfig(ctx context.Context, configurableID *models.ConfigurableID, category models.ConfigType, name string, ordinal int) (id models.ConfigID, err error) {
	defer s.metrics.Track("config.define")(&err)

	cfg := &models.Config{Name: name, Type: category, Index: ordinal}
	if err := validateStruct("config", name, cfg); err != nil {
		return 0, err
	}

	err = s.db.WithTx(ctx, func(ctx context.Context) error {
		if configurableID == nil {
			driver, err := findDriver(ctx, s.repos.Configurables)
			if err != nil {
				return err
			}
			if driver == nil {
				return apperrors.InvalidState("config", name, "no driver is registered")
			}
			cfg.ConfigurableID = driver.ID
		} else {
			c, err := getConfigurableRef(ctx, s.repos.Configurables, *configurableID)
			if err != nil {
				return err
			}
			cfg.ConfigurableID = c.ID
		}
		return s.repos.Configs.Create(ctx, cfg)
	})
	if err != nil {
		return 0, err
	}

	s.logger.Debug("Defined config",
		zap.String("name", cfg.Name),
		zap.String("type", string(cfg.Type)),
		zap.Int64("configurable_id", int64(cfg.ConfigurableID)))
	return cfg.ID, nil
}

func (s *descriptorService) DefineInput(ctx context.Context, in models.Input) (id models.InputID, err error) {
	defer s.metrics.Track("input.define")(&err)

	if err := validateStruct("input", in.Name, &in); err != nil {
		return 0, err
	}
	if err := validateInputDescriptor(&in); err != nil {
		return 0, err
	}

	err = s.db.WithTx(ctx, func(ctx context.Context) error {
		if _, err := s.getConfigRef(ctx, in.ConfigID); err != nil {
			return err
		}
		return s.repos.Inputs.Create(ctx, &in)
	})
	if err != nil {
		return 0, err
	}
	return in.ID, nil
}

// validateInputDescriptor checks the rules the struct tags cannot express.
func validateInputDescriptor(in *models.Input) error {
	if in.Type == models.InputMap {
		switch {
		case in.MaxLength > 0:
			return apperrors.Validation("input", in.Name, "max length applies only to %s inputs", models.InputString)
		case in.Sensitive:
			return apperrors.Validation("input", in.Name, "masking applies only to %s inputs", models.InputString)
		case len(in.EnumValues) > 0:
			return apperrors.Validation("input", in.Name, "enum values apply only to %s inputs", models.InputString)
		}
		return nil
	}

	seen := make(map[string]bool, len(in.EnumValues))
	for _, v := range in.EnumValues {
		if v == "" || strings.Contains(v, repositories.EnumSeparator) {
			return apperrors.Validation("input", in.Name, "invalid enum value %q", v)
		}
		if seen[v] {
			return apperrors.Validation("input", in.Name, "duplicate enum value %q", v)
		}
		seen[v] = true
		if in.MaxLength > 0 && utf8.RuneCountInString(v) > in.MaxLength {
			return apperrors.Validation("input", in.Name, "enum value %q exceeds max length %d", v, in.MaxLength)
		}
	}
	if !fitsColumn(strings.Join(in.EnumValues, repositories.EnumSeparator), schema.TableInput, "SQI_ENUMVALS") {
		return apperrors.Validation("input", in.Name, "enum values exceed %d characters",
			schema.Width(schema.TableInput, "SQI_ENUMVALS"))
	}
	return nil
}

func (s *descriptorService) BindConfigDirection(ctx context.Context, configID models.ConfigID, directionID models.DirectionID) (err error) {
	defer s.metrics.Track("config.bind_direction")(&err)

	return s.db.WithTx(ctx, func(ctx context.Context) error {
		// The pair has no unique key in the layout.
		if err := s.db.LockTable(ctx, schema.TableConfigDirections); err != nil {
			return err
		}
		cfg, err := s.getConfigRef(ctx, configID)
		if err != nil {
			return err
		}
		owner, err := s.repos.Configurables.Get(ctx, cfg.ConfigurableID)
		if err != nil {
			return err
		}
		if owner.Type == models.ConfigurableDriver {
			return apperrors.InvalidState("config", cfg.Name, "driver configs apply to every direction")
		}

		directions, err := s.repos.Directions.List(ctx)
		if err != nil {
			return err
		}
		var name models.Direction
		for _, d := range directions {
			if d.ID == directionID {
				name = d.Name
				break
			}
		}
		if name == "" {
			return apperrors.UnknownReference("direction", directionID.String())
		}
		if slices.Contains(cfg.Directions, name) {
			return nil
		}

		// Narrowing the scope would orphan values stored under the old one.
		n, err := s.countValues(ctx, func(repo repositories.InputValueRepository) (int, error) {
			return repo.CountForConfig(ctx, configID)
		})
		if err != nil {
			return err
		}
		if n > 0 {
			return apperrors.ReferentialIntegrity("config", cfg.Name, "inputs hold %d stored value(s)", n)
		}
		return s.repos.Configs.BindDirection(ctx, configID, directionID)
	})
}

func (s *descriptorService) ConfigsFor(ctx context.Context, configurableID models.ConfigurableID, category models.ConfigType) (out []models.Config, err error) {
	defer s.metrics.Track("config.list")(&err)

	if err := validateCategory(category); err != nil {
		return nil, err
	}
	if _, err := s.repos.Configurables.Get(ctx, configurableID); err != nil {
		return nil, err
	}
	return s.repos.Configs.ListFor(ctx, configurableID, category)
}

func (s *descriptorService) InputsFor(ctx context.Context, configID models.ConfigID) (out []models.Input, err error) {
	defer s.metrics.Track("input.list")(&err)

	if _, err := s.repos.Configs.Get(ctx, configID); err != nil {
		return nil, err
	}
	return s.repos.Inputs.ListFor(ctx, configID)
}

func (s *descriptorService) GetInput(ctx context.Context, id models.InputID) (in *models.Input, err error) {
	defer s.metrics.Track("input.get")(&err)
	return s.repos.Inputs.Get(ctx, id)
}

func (s *descriptorService) DeleteConfig(ctx context.Context, id models.ConfigID) (err error) {
	defer s.metrics.Track("config.delete")(&err)

	return s.db.WithTx(ctx, func(ctx context.Context) error {
		cfg, err := s.repos.Configs.Get(ctx, id)
		if err != nil {
			return err
		}
		n, err := s.countValues(ctx, func(repo repositories.InputValueRepository) (int, error) {
			return repo.CountForConfig(ctx, id)
		})
		if err != nil {
			return err
		}
		if n > 0 {
			return apperrors.ReferentialIntegrity("config", cfg.Name, "inputs hold %d stored value(s)", n)
		}
		return s.repos.Configs.Delete(ctx, id)
	})
}

func (s *descriptorService) DeleteInput(ctx context.Context, id models.InputID) (err error) {
	defer s.metrics.Track("input.delete")(&err)

	return s.db.WithTx(ctx, func(ctx context.Context) error {
		in, err := s.repos.Inputs.Get(ctx, id)
		if err != nil {
			return err
		}
		n, err := s.countValues(ctx, func(repo repositories.InputValueRepository) (int, error) {
			return repo.CountForInput(ctx, id)
		})
		if err != nil {
			return err
		}
		if n > 0 {
			return apperrors.ReferentialIntegrity("input", in.Name, "holds %d stored value(s)", n)
		}
		return s.repos.Inputs.Delete(ctx, id)
	})
}

// countValues sums count over the link and job value tables.
func (s *descriptorService) countValues(ctx context.Context, count func(repositories.InputValueRepository) (int, error)) (int, error) {
	total := 0
	for _, repo := range []repositories.InputValueRepository{s.repos.LinkValues, s.repos.JobValues} {
		n, err := count(repo)
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}

func (s *descriptorService) Form(ctx context.Context, configurableID models.ConfigurableID, category models.ConfigType) (f *models.Form, err error) {
	defer s.metrics.Track("config.form")(&err)

	if err := validateCategory(category); err != nil {
		return nil, err
	}
	c, err := s.repos.Configurables.Get(ctx, configurableID)
	if err != nil {
		return nil, err
	}
	return buildForm(ctx, s.repos, c, category, "", nil)
}

// getConfigRef loads a config referenced by another entity.
func (s *descriptorService) getConfigRef(ctx context.Context, id models.ConfigID) (*models.Config, error) {
	cfg, err := s.repos.Configs.Get(ctx, id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.UnknownReference("config", id.String())
		}
		return nil, err
	}
	return cfg, nil
}

func validateCategory(category models.ConfigType) error {
	if category != models.ConfigLink && category != models.ConfigJob {
		return apperrors.Validation("config", string(category), "category must be %s or %s", models.ConfigLink, models.ConfigJob)
	}
	return nil
}
