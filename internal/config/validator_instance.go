package config

import (
	"regexp"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	once     sync.Once
	instance *validator.Validate
)

var semverPattern = regexp.MustCompile(`^v?\d+\.\d+\.\d+(-[0-9A-Za-z.-]+)?(\+[0-9A-Za-z.-]+)?$`)

var nodeIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// validatorInstance lazily builds the shared validator and registers the
// workflow-definition-specific rules, once per process.
func validatorInstance() *validator.Validate {
	once.Do(func() {
		instance = validator.New()
		instance.RegisterValidation("semver", validateSemver)
		instance.RegisterValidation("node_id", validateNodeID)
	})
	return instance
}

// GetValidator returns the shared validator used for workflow definitions.
func GetValidator() *validator.Validate {
	return validatorInstance()
}

func validateSemver(fl validator.FieldLevel) bool {
	return semverPattern.MatchString(fl.Field().String())
}

func validateNodeID(fl validator.FieldLevel) bool {
	return nodeIDPattern.MatchString(fl.Field().String())
}
