package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"
)

const maxBodySize = 1 << 20

var validate = validator.New()

// ValidationError carries per-field failures from struct tags.
type ValidationError struct {
	Details []ErrorDetail
}

func (e *ValidationError) Error() string { return "validation failed" }

func readJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		var syntaxError *json.SyntaxError
		var unmarshalTypeError *json.UnmarshalTypeError
		var maxBytesError *http.MaxBytesError

		switch {
		case errors.As(err, &syntaxError), errors.Is(err, io.ErrUnexpectedEOF):
			return errors.New("malformed JSON")
		case errors.As(err, &unmarshalTypeError):
			return errors.New("invalid JSON type for field " + unmarshalTypeError.Field)
		case errors.As(err, &maxBytesError):
			return errors.New("request body too large")
		case errors.Is(err, io.EOF):
			return errors.New("request body is empty")
		default:
			return err
		}
	}
	if decoder.More() {
		return errors.New("body must contain only a single JSON value")
	}
	return nil
}

func readAndValidate(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	if err := readJSON(w, r, dst); err != nil {
		return err
	}
	if err := validate.Struct(dst); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			details := make([]ErrorDetail, 0, len(validationErrors))
			for _, fe := range validationErrors {
				details = append(details, ErrorDetail{
					Field:   fe.Field(),
					Message: validationMessage(fe),
					Code:    fe.Tag(),
				})
			}
			return &ValidationError{Details: details}
		}
		return err
	}
	return nil
}

// requestError writes a 400 for decode errors and a 422 for validation ones.
func requestError(w http.ResponseWriter, err error) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		badRequest(w, ve.Error(), ve.Details...)
		return
	}
	badRequest(w, err.Error())
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required"
	case "email":
		return "Invalid email format"
	case "oneof":
		return "Must be one of: " + fe.Param()
	case "min":
		return "Value is too short"
	case "max":
		return "Value is too long"
	case "gte":
		return "Value must be greater than or equal to " + fe.Param()
	default:
		return "Invalid value"
	}
}
