package serverutils

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

var validate = validator.New()

// ValidateRequest checks struct tags and converts violations into a 400.
func ValidateRequest(req interface{}) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	var details []string
	if verrs, ok := err.(validator.ValidationErrors); ok {
		for _, ve := range verrs {
			details = append(details, fmt.Sprintf("%s failed on '%s'", ve.Field(), ve.Tag()))
		}
		return fiber.NewError(fiber.StatusBadRequest, strings.Join(details, "; "))
	}
	return fiber.NewError(fiber.StatusBadRequest, err.Error())
}
