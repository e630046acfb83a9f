package handler

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/Yasmeen-Hezma/Tours-Reservation-API/internal/apperr"
	"github.com/Yasmeen-Hezma/Tours-Reservation-API/internal/model"
	"github.com/Yasmeen-Hezma/Tours-Reservation-API/internal/service"
)

// Validator adapts validator/v10 to echo.Validator. Field names in the
// reported details are the JSON names.
type Validator struct {
	v *validator.Validate
}

func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("role", func(fl validator.FieldLevel) bool {
		return model.ValidRole(fl.Field().String())
	})
	_ = v.RegisterValidation("difficulty", func(fl validator.FieldLevel) bool {
		switch fl.Field().String() {
		case model.DifficultyEasy, model.DifficultyMedium, model.DifficultyHard:
			return true
		}
		return false
	})
	return &Validator{v: v}
}

func (cv *Validator) Validate(i interface{}) error {
	err := cv.v.Struct(i)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return apperr.Validation(err.Error())
	}
	details := make(map[string]string, len(ve))
	msgs := make([]string, 0, len(ve))
	for _, fe := range ve {
		m := fieldMessage(fe)
		details[fe.Field()] = m
		msgs = append(msgs, m)
	}
	return apperr.Validation("Invalid input data. " + strings.Join(msgs, ". ")).WithDetails(details)
}

func fieldMessage(fe validator.FieldError) string {
	f := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", f)
	case "email":
		return "Please provide a valid email"
	case "min":
		return fmt.Sprintf("%s must be at least %s", f, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", f, fe.Param())
	case "role":
		return fmt.Sprintf("%s must be one of %s", f, strings.Join(model.Roles, ", "))
	case "difficulty":
		return "Difficulty is either: easy, medium, hard"
	case "oneof":
		return fmt.Sprintf("%s must be one of %s", f, fe.Param())
	}
	return fmt.Sprintf("%s is invalid", f)
}

// bind decodes the request into dst and validates it.
func bind(c echo.Context, dst interface{}) error {
	if err := c.Bind(dst); err != nil {
		return apperr.Validation("Invalid request body.")
	}
	return c.Validate(dst)
}

// pathID parses the named path parameter as an entity id.
func pathID(c echo.Context, name string) (uint64, error) {
	raw := c.Param(name)
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, apperr.Validation(fmt.Sprintf("Invalid %s: %s.", name, raw))
	}
	return id, nil
}

// pageOf reads ?page= and ?limit=.
func pageOf(c echo.Context) (service.Page, error) {
	var p service.Page
	err := echo.QueryParamsBinder(c).
		Int("page", &p.Page).
		Int("limit", &p.Limit).
		BindError()
	if err != nil {
		return p, apperr.Validation("page and limit must be integers.")
	}
	return p, nil
}
