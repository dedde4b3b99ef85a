package middleware

import (
	"context"
	"errors"
	"io"
	"net/http"
	"reflect"

	"github.com/harishm17/study-buddy-sub001/internal/models"
	"github.com/harishm17/study-buddy-sub001/internal/utils"
)

type contextKey string

const validatedRequestKey contextKey = "validated_request"

// maxJSONBody caps request bodies on JSON routes; uploads go through multipart instead.
const maxJSONBody = 1 << 20

// request models implement this interface
type Validator interface {
	Validate() error
}

// newRequest allocates the value a T points to, so T may be a pointer type.
func newRequest[T Validator]() T {
	var zero T
	typ := reflect.TypeOf(zero)
	if typ.Kind() == reflect.Ptr {
		return reflect.New(typ.Elem()).Interface().(T)
	}
	return reflect.New(typ).Interface().(T)
}

// ValidateRequest decodes the JSON body into a fresh T, runs its Validate method and
// stores it for GetValidatedRequest. An empty body decodes as the zero request, which
// suits routes whose fields are all optional.
func ValidateRequest[T Validator]() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			req := newRequest[T]()

			r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
			err := utils.DecodeJSON(r, req)
			var tooLarge *http.MaxBytesError
			switch {
			case err == nil, errors.Is(err, io.EOF):
			case errors.As(err, &tooLarge):
				utils.JSONError(w, http.StatusRequestEntityTooLarge, "body_too_large", "Request body is too large")
				return
			default:
				utils.JSONError(w, http.StatusBadRequest, "invalid_json", "Invalid JSON in request body")
				return
			}

			if err := req.Validate(); err != nil {
				var errResp *models.ErrorResponse
				if !errors.As(err, &errResp) {
					errResp = &models.ErrorResponse{Code: "validation_error", Message: err.Error()}
				}
				utils.JSON(w, http.StatusBadRequest, *errResp)
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), validatedRequestKey, req)))
		})
	}
}

// GetValidatedRequest retrieves the validated request from context
func GetValidatedRequest[T any](r *http.Request) T {
	return r.Context().Value(validatedRequestKey).(T)
}
