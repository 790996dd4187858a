package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// MaxBodyBytes caps request bodies.
const MaxBodyBytes = 1 << 20

var validate = newValidator()

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// DecodeAndValidate parses the JSON body into T and validates its struct
// tags. On failure it writes a 400 response and returns false.
func DecodeAndValidate[T any](w http.ResponseWriter, r *http.Request) (*T, bool) {
	var input T
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err := dec.Decode(&input); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body")
		return nil, false
	}
	if err := validate.Struct(input); err != nil {
		WriteError(w, http.StatusBadRequest, validationMessage(err))
		return nil, false
	}
	return &input, true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "Validation failed"
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
	}
	return "Validation failed: " + strings.Join(fields, ", ")
}
