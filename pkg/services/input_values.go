package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"unicode/utf8"

	"github.com/ekaya-inc/ekaya-metastore/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-metastore/pkg/models"
	"github.com/ekaya-inc/ekaya-metastore/pkg/repositories"
	"github.com/ekaya-inc/ekaya-metastore/pkg/schema"
)

// inputScope is the set of inputs an instance may bind values to.
type inputScope map[models.InputID]models.Input

// addConfigs adds the inputs of the configurable's configs in category that
// apply to direction. An empty direction admits every config.
func (sc inputScope) addConfigs(ctx context.Context, repos *repositories.Registry, id models.ConfigurableID, category models.ConfigType, direction models.Direction) error {
	configs, err := repos.Configs.ListFor(ctx, id, category)
	if err != nil {
		return err
	}
	for _, cfg := range configs {
		if direction != "" && !cfg.Directions.Allows(direction) {
			continue
		}
		inputs, err := repos.Inputs.ListFor(ctx, cfg.ID)
		if err != nil {
			return err
		}
		for _, in := range inputs {
			sc[in.ID] = in
		}
	}
	return nil
}

// linkScope holds the LINK inputs of the connector and of the driver.
func linkScope(ctx context.Context, repos *repositories.Registry, connector models.ConfigurableID) (inputScope, error) {
	sc := make(inputScope)
	if err := sc.addConfigs(ctx, repos, connector, models.ConfigLink, ""); err != nil {
		return nil, err
	}
	if err := sc.addDriver(ctx, repos, models.ConfigLink); err != nil {
		return nil, err
	}
	return sc, nil
}

// jobScope holds the JOB inputs of the driver, of the from-connector configs
// that apply to FROM and of the to-connector configs that apply to TO.
func jobScope(ctx context.Context, repos *repositories.Registry, from, to models.ConfigurableID) (inputScope, error) {
	sc := make(inputScope)
	if err := sc.addConfigs(ctx, repos, from, models.ConfigJob, models.DirectionFrom); err != nil {
		return nil, err
	}
	if err := sc.addConfigs(ctx, repos, to, models.ConfigJob, models.DirectionTo); err != nil {
		return nil, err
	}
	if err := sc.addDriver(ctx, repos, models.ConfigJob); err != nil {
		return nil, err
	}
	return sc, nil
}

func (sc inputScope) addDriver(ctx context.Context, repos *repositories.Registry, category models.ConfigType) error {
	driver, err := findDriver(ctx, repos.Configurables)
	if err != nil || driver == nil {
		return err
	}
	return sc.addConfigs(ctx, repos, driver.ID, category, "")
}

// serialize validates values against the scope and renders them for
// storage. An input outside the scope is an unknown reference when it does
// not exist at all. A non-zero width bounds each serialized value.
func (sc inputScope) serialize(ctx context.Context, inputs repositories.InputRepository, entity, key string, values models.InputValues, table, column string) (map[models.InputID]string, error) {
	ids := make([]models.InputID, 0, len(values))
	for id := range values {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	out := make(map[models.InputID]string, len(values))
	for _, id := range ids {
		in, ok := sc[id]
		if !ok {
			other, err := inputs.Get(ctx, id)
			if err != nil {
				if errors.Is(err, apperrors.ErrNotFound) {
					return nil, apperrors.UnknownReference("input", id.String())
				}
				return nil, err
			}
			return nil, apperrors.Validation(entity, key, "input %q (%d) is not available to this %s", other.Name, id, entity)
		}
		raw, err := validateValue(in, values[id])
		if err != nil {
			return nil, err
		}
		if !fitsColumn(raw, table, column) {
			return nil, apperrors.Validation("input", in.Name, "value exceeds %d characters", schema.Width(table, column))
		}
		out[id] = raw
	}
	return out, nil
}

// validateValue checks v against its descriptor and returns its stored form.
func validateValue(in models.Input, v models.InputValue) (string, error) {
	if v.Type == "" {
		v.Type = in.Type
	}
	if v.Type != in.Type {
		return "", apperrors.Validation("input", in.Name, "expects a %s value, got %s", in.Type, v.Type)
	}
	switch in.Type {
	case models.InputString:
		if in.MaxLength > 0 && utf8.RuneCountInString(v.String) > in.MaxLength {
			return "", apperrors.Validation("input", in.Name, "value exceeds max length %d", in.MaxLength)
		}
		if len(in.EnumValues) > 0 && !slices.Contains(in.EnumValues, v.String) {
			return "", apperrors.Validation("input", in.Name, "value %q is not one of %v", v.String, in.EnumValues)
		}
		return v.String, nil
	case models.InputMap:
		raw, err := v.Serialize()
		if err != nil {
			return "", apperrors.Validation("input", in.Name, "invalid map value: %v", err)
		}
		return raw, nil
	}
	return "", apperrors.Validation("input", in.Name, "unknown input type %s", in.Type)
}

// loadValues reads an owner's stored values and decodes them by input type.
func loadValues(ctx context.Context, repos *repositories.Registry, values repositories.InputValueRepository, ownerID int64) (models.InputValues, error) {
	raw, err := values.List(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	out := make(models.InputValues, len(raw))
	for id, s := range raw {
		in, err := repos.Inputs.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		v, err := models.ParseInputValue(in.Type, s)
		if err != nil {
			return nil, fmt.Errorf("failed to decode value of input %s: %w", in.Name, err)
		}
		out[id] = v
	}
	return out, nil
}

// buildForm assembles the configs of c in category that apply to direction,
// with their inputs and the current values, if any.
func buildForm(ctx context.Context, repos *repositories.Registry, c *models.Configurable, category models.ConfigType, direction models.Direction, values models.InputValues) (*models.Form, error) {
	configs, err := repos.Configs.ListFor(ctx, c.ID, category)
	if err != nil {
		return nil, err
	}
	form := &models.Form{Configurable: *c, Type: category, Direction: direction, Configs: []models.FormConfig{}}
	for _, cfg := range configs {
		if direction != "" && !cfg.Directions.Allows(direction) {
			continue
		}
		inputs, err := repos.Inputs.ListFor(ctx, cfg.ID)
		if err != nil {
			return nil, err
		}
		fc := models.FormConfig{Config: cfg, Inputs: make([]models.FormInput, 0, len(inputs))}
		for _, in := range inputs {
			fi := models.FormInput{Input: in}
			if v, ok := values[in.ID]; ok {
				fi.Value = &v
			}
			fc.Inputs = append(fc.Inputs, fi)
		}
		form.Configs = append(form.Configs, fc)
	}
	return form, nil
}
