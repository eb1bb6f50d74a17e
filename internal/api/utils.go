package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"webchat/internal/api/middleware"
	"webchat/internal/queue"
)

type apiFunc func(http.ResponseWriter, *http.Request) error

func WriteJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

// MakeHTTPHandleFunc runs f on the request queue and renders a returned
// error as a JSON body.
func (s *APIServer) MakeHTTPHandleFunc(f apiFunc, extra ...middleware.Middleware) http.HandlerFunc {
	baseHandler := func(w http.ResponseWriter, r *http.Request) {
		errc := make(chan error, 1)

		s.requestQueueManager.EnqueueJob(queue.Job{
			Fn: func() error {
				return f(w, r)
			},
			Errc: errc,
		})

		err := <-errc
		if err == nil {
			return
		}

		var httpErr *HTTPError
		if errors.As(err, &httpErr) {
			if httpErr.StatusCode >= http.StatusInternalServerError {
				s.logger.Error().Err(httpErr.ErrorLog).Str("path", r.URL.Path).Msg("[api] request failed")
			} else if httpErr.ErrorLog != nil {
				s.logger.Debug().Err(httpErr.ErrorLog).Str("path", r.URL.Path).Msg("[api] request rejected")
			}
			WriteJSON(w, httpErr.StatusCode, ApiError{Status: "error", Error: httpErr.Message})
			return
		}
		s.logger.Error().Err(err).Str("path", r.URL.Path).Msg("[api] unhandled error")
		WriteJSON(w, http.StatusInternalServerError, ApiError{Status: "error", Error: "Internal server error"})
	}

	middlewares := []middleware.Middleware{
		middleware.CORS(s.cors),
		middleware.Logging(s.logger),
	}
	middlewares = append(middlewares, extra...)

	return middleware.Chain(baseHandler, middlewares...)
}
