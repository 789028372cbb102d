// File: internal/common/validation.go
package common

import (
	"errors"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(wireName)
	}
}

// wireName is the name a client uses for a field: its json tag, then its
// form tag, then the Go name.
func wireName(f reflect.StructField) string {
	for _, tag := range []string{"json", "form"} {
		name, _, _ := strings.Cut(f.Tag.Get(tag), ",")
		if name == "-" {
			return ""
		}
		if name != "" {
			return name
		}
	}
	return f.Name
}

// BindJSON parses and validates the request body as T. Exactly one of the
// return values is meaningful: a valid body, or an APIError describing why
// the body was rejected (422 for rule violations, 400 for malformed JSON).
func BindJSON[T any](c *gin.Context) (T, *APIError) {
	var body T
	if err := c.ShouldBindJSON(&body); err != nil {
		return body, bindError(err)
	}
	return body, nil
}

// BindQuery is BindJSON for query-string parameters.
func BindQuery[T any](c *gin.Context) (T, *APIError) {
	var q T
	if err := c.ShouldBindQuery(&q); err != nil {
		return q, bindError(err)
	}
	return q, nil
}

func bindError(err error) *APIError {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return NewValidationAPIError(FormatValidationErrors(verrs))
	}
	return ErrBadRequest.WithDetails("Invalid request body: " + err.Error())
}
