package response

import (
	"encoding/json"
	"net/http"
)

const encodeFailure = `{"error":{"code":"INTERNAL_ERROR","message":"Internal server error"}}`

// JSON writes data as a JSON response. A value that cannot be encoded yields
// a 500 instead of a truncated body.
func JSON(w http.ResponseWriter, status int, data any) {
	body, err := json.Marshal(data)
	if err != nil {
		status = http.StatusInternalServerError
		body = []byte(encodeFailure)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}
