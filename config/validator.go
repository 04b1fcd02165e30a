package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// validate is the global validator instance.
var validate *validator.Validate

func init() {
	validate = validator.New()

	// Register custom validators
	validate.RegisterValidation("env", validateEnvironment)
}

// ConfigError represents a validation error for a specific field.
type ConfigError struct {
	Field   string
	Message string
	Value   interface{}
}

func (e ConfigError) Error() string {
	return fmt.Sprintf("%s: %s (got %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of config errors.
type ValidationErrors []ConfigError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}

	var sb strings.Builder
	sb.WriteString("configuration validation failed:\n")
	for _, err := range e {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// ValidateWithDetails performs validation and returns detailed errors.
func ValidateWithDetails(cfg *Config) error {
	details := collectFieldErrors(cfg)
	details = append(details, crossFieldErrors(cfg)...)
	if len(details) > 0 {
		return details
	}
	return nil
}

func collectFieldErrors(cfg *Config) ValidationErrors {
	if err := validate.Struct(cfg); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			var details ValidationErrors
			for _, fe := range validationErrors {
				details = append(details, ConfigError{
					Field:   fe.Namespace(),
					Message: formatValidationError(fe),
					Value:   fe.Value(),
				})
			}
			return details
		}
		return ValidationErrors{{Field: "Config", Message: err.Error()}}
	}
	return nil
}

// crossFieldErrors checks constraints spanning several fields.
func crossFieldErrors(cfg *Config) ValidationErrors {
	var details ValidationErrors
	switch cfg.Storage.Type {
	case "badger":
		if strings.TrimSpace(cfg.Storage.Badger.Path) == "" {
			details = append(details, ConfigError{
				Field:   "Config.Storage.Badger.Path",
				Message: "required when storage type is badger",
				Value:   cfg.Storage.Badger.Path,
			})
		}
	case "redis":
		if strings.TrimSpace(cfg.Storage.Redis.Address) == "" {
			details = append(details, ConfigError{
				Field:   "Config.Storage.Redis.Address",
				Message: "required when storage type is redis",
				Value:   cfg.Storage.Redis.Address,
			})
		}
	}
	if cfg.Metrics.Enabled && cfg.Metrics.Port == cfg.Server.Port {
		details = append(details, ConfigError{
			Field:   "Config.Metrics.Port",
			Message: "must differ from the API port",
			Value:   cfg.Metrics.Port,
		})
	}
	if cfg.Tracing.Enabled && strings.TrimSpace(cfg.Tracing.Endpoint) == "" {
		details = append(details, ConfigError{
			Field:   "Config.Tracing.Endpoint",
			Message: "required when tracing is enabled",
			Value:   cfg.Tracing.Endpoint,
		})
	}
	for i, g := range cfg.Willing.DownFrequencyGroups {
		if strings.TrimSpace(g) == "" {
			details = append(details, ConfigError{
				Field:   fmt.Sprintf("Config.Willing.DownFrequencyGroups[%d]", i),
				Message: "group id cannot be empty",
				Value:   g,
			})
		}
	}
	return details
}

// formatValidationError converts validator.FieldError to a human-readable message.
func formatValidationError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be less than or equal to %s", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "env":
		return "must be one of [development staging production]"
	default:
		return fmt.Sprintf("failed validation: %s", fe.Tag())
	}
}

// validateEnvironment is a custom validator for environment values.
func validateEnvironment(fl validator.FieldLevel) bool {
	env := fl.Field().String()
	validEnvs := []string{"development", "staging", "production"}
	for _, valid := range validEnvs {
		if env == valid {
			return true
		}
	}
	return false
}
