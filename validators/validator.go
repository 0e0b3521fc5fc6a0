// Package validators plugs go-playground/validator into echo.
package validators

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/anonto42/nano-midea/socialgraph/internal/models"
)

// CustomValidator implements echo.Validator.
type CustomValidator struct {
	validator *validator.Validate
}

// NewValidator registers the "handle" tag next to the built-in tags.
func NewValidator() *CustomValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.RegisterValidation("handle", func(fl validator.FieldLevel) bool {
		return models.ValidHandle(fl.Field().String())
	}); err != nil {
		panic(err)
	}
	return &CustomValidator{validator: v}
}

// Validate returns a 400 HTTPError for invalid structs.
func (cv *CustomValidator) Validate(i interface{}) error {
	if err := cv.validator.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}
