package application

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/language"

	"github.com/ahrav/go-nlpeval/internal/domain"
)

// configValidator is shared by every validation in this package.
// validator.Validate caches struct metadata and is safe for concurrent use.
var configValidator = newConfigValidator()

func newConfigValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(yamlFieldName)
	if err := RegisterConfigValidators(v); err != nil {
		panic(fmt.Sprintf("register config validators: %v", err))
	}
	return v
}

// RegisterConfigValidators registers custom validation functions with
// the validator instance for use in configuration struct tags.
// RegisterConfigValidators adds the langtag validator for BCP 47
// language tags.
// RegisterConfigValidators returns an error if any validator registration
// fails.
func RegisterConfigValidators(v *validator.Validate) error {
	if err := v.RegisterValidation("langtag", validateLanguageTag); err != nil {
		return fmt.Errorf("failed to register langtag validator: %w", err)
	}
	return nil
}

// validateLanguageTag accepts any well-formed BCP 47 tag such as "en",
// "fr-FR" or "zh-Hant".
func validateLanguageTag(fl validator.FieldLevel) bool {
	tag := fl.Field().String()
	if tag == "" {
		return false
	}
	_, err := language.Parse(tag)
	return err == nil
}

// yamlFieldName reports fields by their YAML key so validation messages
// match what the user wrote in the configuration file.
func yamlFieldName(fld reflect.StructField) string {
	name, _, _ := strings.Cut(fld.Tag.Get("yaml"), ",")
	if name == "-" {
		return ""
	}
	if name == "" {
		return fld.Name
	}
	return name
}

// ValidateEvaluationConfig checks an evaluation configuration and returns a
// *domain.ConfigurationError naming the first offending field.
// A threshold outside (0, 1) additionally matches domain.ErrInvalidThreshold.
func ValidateEvaluationConfig(cfg EvaluationConfig) error {
	return toConfigurationError("evaluation", configValidator.Struct(cfg))
}

// validateRunConfig checks a run configuration, including the rules that
// depend on more than one field.
func validateRunConfig(cfg RunConfig) error {
	if err := toConfigurationError("config", configValidator.Struct(cfg)); err != nil {
		return err
	}
	if cfg.Classifier.UsesLLM() && cfg.Classifier.LLM.Model == "" {
		return domain.NewConfigurationError("classifier.llm.model",
			fmt.Errorf("model is required when classifier type is %s", cfg.Classifier.Type))
	}
	return nil
}

// toConfigurationError converts validator output into the domain error
// taxonomy. Non-validation errors are wrapped as they are.
func toConfigurationError(entity string, err error) error {
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return domain.NewConfigurationError(entity, err)
	}

	verr := domain.NewValidationError(entity)
	thresholdFailed := false
	for _, fe := range fieldErrs {
		verr.AddError(describeFieldError(fe))
		if fe.Field() == "threshold" {
			thresholdFailed = true
		}
	}

	field := trimNamespace(fieldErrs[0].Namespace())
	if thresholdFailed {
		return domain.NewConfigurationError(field, errors.Join(domain.ErrInvalidThreshold, verr))
	}
	return domain.NewConfigurationError(field, verr)
}

func describeFieldError(fe validator.FieldError) string {
	field := trimNamespace(fe.Namespace())
	if fe.Param() != "" {
		return fmt.Sprintf("%s failed %s=%s (got %v)", field, fe.Tag(), fe.Param(), fe.Value())
	}
	return fmt.Sprintf("%s failed %s (got %v)", field, fe.Tag(), fe.Value())
}

// trimNamespace drops the root struct name from a validator namespace,
// turning "EvaluationConfig.threshold" into "threshold".
func trimNamespace(ns string) string {
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}
