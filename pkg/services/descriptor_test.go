package services

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-metastore/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-metastore/pkg/models"
	"github.com/ekaya-inc/ekaya-metastore/pkg/schema"
)

func TestDescriptorService_ConfigsForOrdinalOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.registerJDBC(t)

	for _, cfg := range []struct {
		name    string
		ordinal int
	}{
		{"throttling", 3},
		{"partition", 1},
		{"table", 2},
	} {
		_, err := f.descriptors.DefineConfig(ctx, &c.connector, models.ConfigJob, cfg.name, cfg.ordinal)
		require.NoError(t, err)
	}

	configs, err := f.descriptors.ConfigsFor(ctx, c.connector, models.ConfigJob)
	require.NoError(t, err)
	var names []string
	for _, cfg := range configs {
		names = append(names, cfg.Name)
	}
	assert.Equal(t, []string{"partition", "table", "throttling"}, names)

	links, err := f.descriptors.ConfigsFor(ctx, c.connector, models.ConfigLink)
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, "connection", links[0].Name)
}

func TestDescriptorService_InputsForOrdinalOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.registerJDBC(t)

	for _, in := range []models.Input{
		{Name: "password", Index: 3, Type: models.InputString, Sensitive: true},
		{Name: "username", Index: 2, Type: models.InputString},
		{Name: "properties", Index: 4, Type: models.InputMap},
	} {
		in.ConfigID = c.connection
		_, err := f.descriptors.DefineInput(ctx, in)
		require.NoError(t, err)
	}

	inputs, err := f.descriptors.InputsFor(ctx, c.connection)
	require.NoError(t, err)
	var names []string
	for _, in := range inputs {
		names = append(names, in.Name)
	}
	assert.Equal(t, []string{"url", "username", "password", "properties"}, names)
	assert.True(t, inputs[2].Sensitive)
	assert.Equal(t, 200, inputs[0].MaxLength)
}

func TestDescriptorService_DefineConfig(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.descriptors.DefineConfig(ctx, nil, models.ConfigJob, "throttling", 0)
	require.ErrorIs(t, err, apperrors.ErrInvalidState, "driver-level config needs a driver")

	c := f.registerJDBC(t)

	id, err := f.descriptors.DefineConfig(ctx, nil, models.ConfigJob, "throttling", 0)
	require.NoError(t, err)
	driverConfigs, err := f.descriptors.ConfigsFor(ctx, c.driver, models.ConfigJob)
	require.NoError(t, err)
	require.Len(t, driverConfigs, 1)
	assert.Equal(t, id, driverConfigs[0].ID)

	_, err = f.descriptors.DefineConfig(ctx, &c.connector, models.ConfigLink, "connection", 1)
	assert.ErrorIs(t, err, apperrors.ErrDuplicateName)

	_, err = f.descriptors.DefineConfig(ctx, &c.connector, models.ConfigJob, "connection", 1)
	assert.NoError(t, err, "same name in another category is allowed")

	unknown := models.ConfigurableID(9999)
	_, err = f.descriptors.DefineConfig(ctx, &unknown, models.ConfigLink, "x", 0)
	assert.ErrorIs(t, err, apperrors.ErrUnknownReference)

	_, err = f.descriptors.DefineConfig(ctx, &c.connector, "SUBMISSION", "x", 0)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestDescriptorService_DefineInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.registerJDBC(t)

	tests := []struct {
		name    string
		input   models.Input
		wantErr error
	}{
		{
			name:    "map with max length",
			input:   models.Input{Name: "props", Type: models.InputMap, MaxLength: 10},
			wantErr: apperrors.ErrValidation,
		},
		{
			name:    "map with masking",
			input:   models.Input{Name: "props", Type: models.InputMap, Sensitive: true},
			wantErr: apperrors.ErrValidation,
		},
		{
			name:    "map with enum values",
			input:   models.Input{Name: "props", Type: models.InputMap, EnumValues: []string{"a"}},
			wantErr: apperrors.ErrValidation,
		},
		{
			name:    "enum value with separator",
			input:   models.Input{Name: "mode", Type: models.InputString, EnumValues: []string{"a,b"}},
			wantErr: apperrors.ErrValidation,
		},
		{
			name:    "enum values wider than column",
			input:   models.Input{Name: "mode", Type: models.InputString, EnumValues: []string{strings.Repeat("x", 60), strings.Repeat("y", 60)}},
			wantErr: apperrors.ErrValidation,
		},
		{
			name:    "unknown type",
			input:   models.Input{Name: "mode", Type: "LIST"},
			wantErr: apperrors.ErrValidation,
		},
		{
			name:    "duplicate name and type",
			input:   models.Input{Name: "url", Type: models.InputString},
			wantErr: apperrors.ErrDuplicateName,
		},
		{
			name:  "same name other type",
			input: models.Input{Name: "url", Type: models.InputMap},
		},
		{
			name:  "enum",
			input: models.Input{Name: "mode", Type: models.InputString, EnumValues: []string{"append", "overwrite"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := tt.input
			in.ConfigID = c.connection
			id, err := f.descriptors.DefineInput(ctx, in)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.NotZero(t, id)
		})
	}

	_, err := f.descriptors.DefineInput(ctx, models.Input{ConfigID: 9999, Name: "x", Type: models.InputString})
	assert.ErrorIs(t, err, apperrors.ErrUnknownReference)

	inputs, err := f.descriptors.InputsFor(ctx, c.connection)
	require.NoError(t, err)
	for _, in := range inputs {
		if in.Name == "mode" {
			assert.Equal(t, []string{"append", "overwrite"}, in.EnumValues)
		}
	}
}

func TestDescriptorService_BindConfigDirection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.registerJDBC(t)

	dirs, err := f.directions.ListDirections(ctx)
	require.NoError(t, err)
	from := dirs[0].ID

	cfg, err := f.descriptors.DefineConfig(ctx, &c.connector, models.ConfigJob, "fromJobConfig", 0)
	require.NoError(t, err)
	require.NoError(t, f.descriptors.BindConfigDirection(ctx, cfg, from))
	require.NoError(t, f.descriptors.BindConfigDirection(ctx, cfg, from), "binding twice is a no-op")

	configs, err := f.descriptors.ConfigsFor(ctx, c.connector, models.ConfigJob)
	require.NoError(t, err)
	require.Len(t, configs, 1)
	assert.Equal(t, models.Directions{models.DirectionFrom}, configs[0].Directions)

	driverCfg, err := f.descriptors.DefineConfig(ctx, nil, models.ConfigJob, "throttling", 0)
	require.NoError(t, err)
	assert.ErrorIs(t, f.descriptors.BindConfigDirection(ctx, driverCfg, from), apperrors.ErrInvalidState)
	assert.ErrorIs(t, f.descriptors.BindConfigDirection(ctx, 9999, from), apperrors.ErrUnknownReference)
	assert.ErrorIs(t, f.descriptors.BindConfigDirection(ctx, cfg, 9999), apperrors.ErrUnknownReference)

	// Once a link stores a value, the connection config keeps its scope.
	_, err = f.links.CreateLink(ctx, "L1", c.connector, models.InputValues{c.url: models.StringValue("jdbc:test")}, "alice")
	require.NoError(t, err)
	assert.ErrorIs(t, f.descriptors.BindConfigDirection(ctx, c.connection, from), apperrors.ErrReferentialIntegrity)
	assert.Equal(t, 1, f.countRows(t, schema.TableConfigDirections))
}

func TestDescriptorService_DeleteReferencedDescriptors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.registerJDBC(t)

	unused := f.defineInput(t, c.connection, "schema", models.InputString)
	_, err := f.links.CreateLink(ctx, "L1", c.connector, models.InputValues{c.url: models.StringValue("jdbc:test")}, "alice")
	require.NoError(t, err)

	assert.ErrorIs(t, f.descriptors.DeleteInput(ctx, c.url), apperrors.ErrReferentialIntegrity)
	assert.ErrorIs(t, f.descriptors.DeleteConfig(ctx, c.connection), apperrors.ErrReferentialIntegrity)

	require.NoError(t, f.descriptors.DeleteInput(ctx, unused))
	assert.ErrorIs(t, f.descriptors.DeleteInput(ctx, unused), apperrors.ErrNotFound)

	other, err := f.descriptors.DefineConfig(ctx, &c.connector, models.ConfigJob, "unused", 0)
	require.NoError(t, err)
	f.defineInput(t, other, "table", models.InputString)
	require.NoError(t, f.descriptors.DeleteConfig(ctx, other))
	assert.ErrorIs(t, f.descriptors.DeleteConfig(ctx, other), apperrors.ErrNotFound)
}

func TestDescriptorService_Form(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.registerJDBC(t)

	form, err := f.descriptors.Form(ctx, c.connector, models.ConfigLink)
	require.NoError(t, err)
	assert.Equal(t, "jdbc", form.Configurable.Name)
	require.Len(t, form.Configs, 1)
	require.Len(t, form.Configs[0].Inputs, 1)
	assert.Equal(t, "url", form.Configs[0].Inputs[0].Input.Name)
	assert.Nil(t, form.Configs[0].Inputs[0].Value)
}
