package descriptor

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"
)

var accountNameRe = regexp.MustCompile(`^[a-z_][a-z0-9_-]*[$]?$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("account", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return len(s) <= 32 && accountNameRe.MatchString(s)
	})
	// relpath accepts relative paths that stay inside their parent.
	_ = v.RegisterValidation("relpath", func(fl validator.FieldLevel) bool {
		s := strings.TrimSpace(fl.Field().String())
		if s == "" || filepath.IsAbs(s) {
			return false
		}
		clean := filepath.Clean(s)
		return clean != ".." && !strings.HasPrefix(clean, ".."+string(filepath.Separator))
	})
	return v
}

func validateFile(f *File) error {
	err := validate.Struct(f)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed %q check (value %v)", fieldPath(fe), fe.Tag(), fe.Value()))
	}
	return fmt.Errorf("invalid descriptor: %s", strings.Join(msgs, "; "))
}

func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

// Schema returns the JSON Schema of the descriptor file format.
func Schema() ([]byte, error) {
	r := jsonschema.Reflector{ExpandedStruct: true}
	s := r.Reflect(&File{})
	s.Title = "Service descriptor"
	out, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	return out, nil
}
