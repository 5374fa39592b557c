package schema

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var (
	structValidator     *validator.Validate
	structValidatorErr  error
	structValidatorOnce sync.Once
)

// customValidations are the tags module definitions use beyond the
// validator built-ins.
var customValidations = map[string]validator.Func{
	"identifier": func(fl validator.FieldLevel) bool {
		return isValidIdentifier(fl.Field().String())
	},
}

// validate returns the shared struct validator. Error field names come from
// yaml tags so messages match what the author wrote.
func validate() (*validator.Validate, error) {
	structValidatorOnce.Do(func() {
		structValidator, structValidatorErr = newStructValidator(customValidations)
	})
	return structValidator, structValidatorErr
}

func newStructValidator(custom map[string]validator.Func) (*validator.Validate, error) {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	for tag, fn := range custom {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return nil, fmt.Errorf("register validation %q: %w", tag, err)
		}
	}
	return v, nil
}

// ParseFile parses a module definition from a YAML file.
func ParseFile(path string) (Module, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Module{}, fmt.Errorf("read file %s: %w", path, err)
	}

	return Parse(data)
}

// Parse parses a module definition from YAML bytes.
func Parse(data []byte) (Module, error) {
	var mod Module
	if err := yaml.Unmarshal(data, &mod); err != nil {
		return Module{}, fmt.Errorf("parse yaml: %w", err)
	}

	if err := Validate(mod); err != nil {
		return Module{}, fmt.Errorf("validate module %q: %w", mod.Name, err)
	}

	return mod, nil
}

// ParseDir parses all module definitions from a directory, including subdirectories.
func ParseDir(dir string) ([]Module, error) {
	return ParseFS(os.DirFS(dir), ".")
}

// ParseFS parses all module definitions below dir in fsys. Used for the
// embedded built-in modules as well as directories on disk.
func ParseFS(fsys fs.FS, dir string) ([]Module, error) {
	var modules []Module

	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", dir, err)
	}

	for _, entry := range entries {
		p := path.Join(dir, entry.Name())

		if entry.IsDir() {
			sub, err := ParseFS(fsys, p)
			if err != nil {
				return nil, err
			}
			modules = append(modules, sub...)
			continue
		}

		ext := filepath.Ext(entry.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}

		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return nil, fmt.Errorf("read file %s: %w", p, err)
		}

		mod, err := Parse(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}

		modules = append(modules, mod)
	}

	return modules, nil
}

// Validate validates a module definition: struct-level rules first, then the
// seed itself (keys, constraints, visibility, uniqueness).
func Validate(mod Module) error {
	var errs []string

	v, err := validate()
	if err != nil {
		return err
	}
	if err := v.Struct(mod); err != nil {
		verrs, ok := err.(validator.ValidationErrors)
		if !ok {
			return err
		}
		for _, fe := range verrs {
			errs = append(errs, describeFieldError(fe))
		}
	}

	// Seed checks need a well-formed role list to be meaningful.
	if len(errs) == 0 {
		if _, err := mod.Seed(); err != nil {
			errs = append(errs, err.Error())
		}
	}

	if len(errs) > 0 {
		return NewValidationError("", "validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

func describeFieldError(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		ns = ns[i+1:]
	}
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", ns)
	case "identifier":
		return fmt.Sprintf("%s %q is not a valid identifier", ns, fe.Value())
	case "unique":
		return fmt.Sprintf("%s must not contain duplicates", ns)
	case "min":
		return fmt.Sprintf("%s must have at least %s entries", ns, fe.Param())
	default:
		return fmt.Sprintf("%s failed %q", ns, fe.Tag())
	}
}
