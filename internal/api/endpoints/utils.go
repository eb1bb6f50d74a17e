package endpoints

import (
	"fmt"
	"net/http"
	"strings"

	"webchat/internal/api"
)

type HTTPError = api.HTTPError

func WriteJSON(w http.ResponseWriter, status int, v any) error {
	return api.WriteJSON(w, status, v)
}

func MethodHandler(
	w http.ResponseWriter,
	r *http.Request,
	allowed map[string]func(http.ResponseWriter, *http.Request) error,
) error {
	if handler, ok := allowed[r.Method]; ok {
		return handler(w, r)
	}
	return &HTTPError{
		StatusCode: http.StatusMethodNotAllowed,
		Message:    "Method not allowed.",
		ErrorLog:   fmt.Errorf("method %s not allowed on %s", r.Method, r.URL.Path),
	}
}

// pathParam returns the single segment following prefix.
func pathParam(path, prefix string) (string, error) {
	if !strings.HasPrefix(path, prefix) {
		return "", &HTTPError{
			StatusCode: http.StatusNotFound,
			Message:    "Not found.",
			ErrorLog:   fmt.Errorf("path %q outside %q", path, prefix),
		}
	}
	param := strings.Trim(strings.TrimPrefix(path, prefix), "/")
	if param == "" || strings.Contains(param, "/") {
		return "", &HTTPError{
			StatusCode: http.StatusNotFound,
			Message:    "Protocolo não encontrado.",
			ErrorLog:   fmt.Errorf("invalid path parameter in %q", path),
		}
	}
	return param, nil
}
