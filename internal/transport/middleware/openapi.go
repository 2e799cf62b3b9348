package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/gorillamux"

	"github.com/frahmantamala/rbac-admin/internal/transport"
)

// LoadOpenAPI parses and validates an OpenAPI 3 document.
func LoadOpenAPI(ctx context.Context, data []byte) (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(data)
	if err != nil {
		return nil, fmt.Errorf("load openapi document: %w", err)
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("validate openapi document: %w", err)
	}
	return doc, nil
}

// OpenAPIValidator rejects requests whose parameters or body do not match
// the document. Requests for routes the document does not describe pass
// through untouched.
func OpenAPIValidator(doc *openapi3.T, lg *slog.Logger) (func(http.Handler) http.Handler, error) {
	router, err := gorillamux.NewRouter(doc)
	if err != nil {
		return nil, fmt.Errorf("build openapi router: %w", err)
	}

	opts := &openapi3filter.Options{
		AuthenticationFunc: openapi3filter.NoopAuthenticationFunc,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route, pathParams, err := router.FindRoute(r)
			if err != nil {
				if !errors.Is(err, routers.ErrPathNotFound) && !errors.Is(err, routers.ErrMethodNotAllowed) {
					lg.Warn("openapi route lookup failed", "path", r.URL.Path, "error", err)
				}
				next.ServeHTTP(w, r)
				return
			}

			input := &openapi3filter.RequestValidationInput{
				Request:    r,
				PathParams: pathParams,
				Route:      route,
				Options:    opts,
			}
			if err := openapi3filter.ValidateRequest(r.Context(), input); err != nil {
				lg.Warn("request rejected by schema", "method", r.Method, "path", r.URL.Path, "error", err)
				body := transport.ErrorEnvelope("Request does not match the API schema", map[string][]string{
					"general": {schemaErrorText(err)},
				})
				_ = transport.Write(w, http.StatusUnprocessableEntity, body)
				return
			}

			next.ServeHTTP(w, r)
		})
	}, nil
}

func schemaErrorText(err error) string {
	var reqErr *openapi3filter.RequestError
	if errors.As(err, &reqErr) {
		if reqErr.Parameter != nil {
			return fmt.Sprintf("parameter %q: %s", reqErr.Parameter.Name, reqErr.Reason)
		}
		if reqErr.Reason != "" {
			return reqErr.Reason
		}
		if reqErr.Err != nil {
			return reqErr.Err.Error()
		}
	}
	return err.Error()
}
