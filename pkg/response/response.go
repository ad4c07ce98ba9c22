package response

// Response represents a standard API response format
type Response struct {
	Status     string      `json:"status"`      // "success", "partial" or "error"
	StatusCode int         `json:"status_code"` // HTTP status code
	Data       interface{} `json:"data,omitempty"`
	Error      string      `json:"error,omitempty"`
}

// Success returns a standard success response wrapping the data
func Success(statusCode int, data interface{}) Response {
	return Response{
		Status:     "success",
		StatusCode: statusCode,
		Data:       data,
	}
}

// Partial returns a response for an operation that committed but left some work undone.
// Data carries the per-step outcome.
func Partial(statusCode int, data interface{}, err string) Response {
	return Response{
		Status:     "partial",
		StatusCode: statusCode,
		Data:       data,
		Error:      err,
	}
}

// Error returns a standard error response wrapping the error message
func Error(statusCode int, err string) Response {
	return Response{
		Status:     "error",
		StatusCode: statusCode,
		Error:      err,
	}
}
