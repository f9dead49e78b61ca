package server

import (
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

const (
	maxNameLength     = 64
	maxGameNameLength = 80
	maxSlotsPerGame   = 24
	maxOrderQuantity  = 50
)

var validatorOnce sync.Once

func registerValidators() {
	validatorOnce.Do(func() {
		engine, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = engine.RegisterValidation("username", func(fl validator.FieldLevel) bool {
			return validateName(fl.Field().String(), maxNameLength)
		})
		_ = engine.RegisterValidation("gamename", func(fl validator.FieldLevel) bool {
			return validateName(fl.Field().String(), maxGameNameLength)
		})
	})
}

func validateName(raw string, maxLen int) bool {
	trimmed := strings.TrimSpace(raw)
	return trimmed != "" && len(trimmed) <= maxLen
}

func normalizeText(raw string) string {
	return strings.Join(strings.Fields(raw), " ")
}
