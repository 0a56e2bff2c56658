package server

import (
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"aimlib/internal/db/model"
)

func init() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	_ = v.RegisterValidation("resourcetype", func(fl validator.FieldLevel) bool {
		return model.ResourceType(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("role", func(fl validator.FieldLevel) bool {
		return model.Role(fl.Field().String()).Valid()
	})
}
