package validator

import (
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// CustomValidator wraps go-playground validator for Echo
type CustomValidator struct {
	validator *validator.Validate
}

// Validate implements echo.Validator interface
func (cv *CustomValidator) Validate(i interface{}) error {
	if err := cv.validator.Struct(i); err != nil {
		return echo.NewHTTPError(400, err.Error())
	}
	return nil
}

// New creates a new custom validator instance
func New() echo.Validator {
	return &CustomValidator{
		validator: newValidate(),
	}
}

func newValidate() *validator.Validate {
	v := validator.New()
	// battle_type 校验：限定为支持的战斗类型
	_ = v.RegisterValidation("battle_type", func(fl validator.FieldLevel) bool {
		switch fl.Field().String() {
		case "solo", "party", "raid", "pvp":
			return true
		}
		return false
	})
	return v
}
