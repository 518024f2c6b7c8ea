package common

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/go-playground/validator"
	"github.com/labstack/echo/v4"
)

var (
	sharedValidator     *validator.Validate
	sharedValidatorOnce sync.Once
)

// Validator returns the process-wide struct validator
func Validator() *validator.Validate {
	sharedValidatorOnce.Do(func() {
		sharedValidator = validator.New()
	})
	return sharedValidator
}

// ValidateStruct validates struct tags and flattens the first failures into a readable error
func ValidateStruct(i interface{}) error {
	err := Validator().Struct(i)
	if err == nil {
		return nil
	}
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok || len(validationErrors) == 0 {
		return err
	}
	first := validationErrors[0]
	return fmt.Errorf("field %s failed on '%s' (value: %v)", first.Namespace(), first.Tag(), first.Value())
}

type GenericEchoValidator struct {
	Validator *validator.Validate
}

func (gv *GenericEchoValidator) Validate(i interface{}) error {
	if gv.Validator == nil {
		gv.Validator = Validator()
	}
	if err := gv.Validator.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("received invalid request: %v", err))
	}
	return nil
}
