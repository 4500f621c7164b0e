package services

import (
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"github.com/ekaya-inc/ekaya-metastore/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-metastore/pkg/schema"
)

var (
	validateOnce     sync.Once
	validateInstance *validator.Validate
)

// getValidator returns the shared validator. Besides the built-in tags it
// understands column=TABLE.COLUMN, which bounds a string by the width of that
// column in the layout.
func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		if err := v.RegisterValidation("column", validateColumnWidth); err != nil {
			panic(fmt.Sprintf("register column validation: %v", err))
		}
		validateInstance = v
	})
	return validateInstance
}

func validateColumnWidth(fl validator.FieldLevel) bool {
	table, column, ok := strings.Cut(fl.Param(), ".")
	if !ok {
		return false
	}
	return fitsColumn(fl.Field().String(), table, column)
}

func fitsColumn(s, table, column string) bool {
	width := schema.Width(table, column)
	return width == 0 || utf8.RuneCountInString(s) <= width
}

// truncateToColumn cuts s to the width of table.column on a rune boundary.
func truncateToColumn(s, table, column string) string {
	width := schema.Width(table, column)
	if width == 0 || utf8.RuneCountInString(s) <= width {
		return s
	}
	runes := []rune(s)
	return string(runes[:width])
}

// validateStruct checks v's validate tags and reports the first failure as a
// validation error on entity/key.
func validateStruct(entity, key string, v any) error {
	err := getValidator().Struct(v)
	if err == nil {
		return nil
	}
	if ves, ok := err.(validator.ValidationErrors); ok {
		fe := ves[0]
		field := strings.ToLower(fe.Field())
		if fe.Tag() == "column" {
			table, column, _ := strings.Cut(fe.Param(), ".")
			return apperrors.Validation(entity, key, "%s exceeds %d characters", field, schema.Width(table, column))
		}
		if fe.Param() != "" {
			return apperrors.Validation(entity, key, "%s failed validation for tag '%s=%s'", field, fe.Tag(), fe.Param())
		}
		return apperrors.Validation(entity, key, "%s failed validation for tag '%s'", field, fe.Tag())
	}
	return apperrors.Validation(entity, key, "%v", err)
}
