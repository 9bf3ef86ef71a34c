package config

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate checks the struct tags, then the rules spanning several fields.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	for _, source := range cfg.Images.Sources {
		switch source {
		case "disk":
			if cfg.Images.Root == "" {
				return fmt.Errorf("images.root: required by the disk source")
			}
		case "s3":
			if len(cfg.Images.S3) == 0 {
				return fmt.Errorf("images.s3: required by the s3 source")
			}
		case "gcs":
			if len(cfg.Images.GCS) == 0 {
				return fmt.Errorf("images.gcs: required by the gcs source")
			}
		}
	}
	return nil
}

// formatValidationError reports the first failing field.
func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
		e := validationErrs[0]
		return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
			e.Namespace(), e.Tag(), e.Value())
	}
	return err
}
