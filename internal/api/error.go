package api

// HTTPError is returned by handlers to pick the response status. Message is
// sent to the caller; ErrorLog is only logged.
type HTTPError struct {
	StatusCode int
	Message    string
	ErrorLog   error
}

func (e *HTTPError) Error() string {
	return e.Message
}

type ApiError struct {
	Status string `json:"status"`
	Error  string `json:"message"`
}
