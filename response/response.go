// Package response writes the {code, data, message} envelope every HTTP
// endpoint returns.
package response

import (
	"encoding/json"
	"net/http"

	"github.com/MrEthical07/sensorgate"
)

// Envelope is the JSON body of every API response. Code is 0 on success.
type Envelope struct {
	Code    int    `json:"code"`
	Data    any    `json:"data"`
	Message string `json:"message"`
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

// OK writes a success envelope carrying data.
func OK(w http.ResponseWriter, data any) error {
	return WriteJSON(w, http.StatusOK, Envelope{Code: sensorgate.CodeSuccess, Data: data, Message: "ok"})
}

// Error writes the envelope for err with the status its category maps to.
// System error causes are never written.
func Error(w http.ResponseWriter, err error) error {
	return WriteJSON(w, StatusFor(err), Envelope{
		Code:    sensorgate.CodeOf(err),
		Message: sensorgate.MessageOf(err),
	})
}

// Unauthorized writes the 401 not-authenticated envelope.
func Unauthorized(w http.ResponseWriter) error {
	return Error(w, sensorgate.ErrSessionNotFound)
}

// StatusFor maps an error category to an HTTP status. Params and operation
// errors are reported in the envelope with 200.
func StatusFor(err error) int {
	if err == nil {
		return http.StatusOK
	}
	switch sensorgate.KindOf(err) {
	case sensorgate.KindNotAuthenticated:
		return http.StatusUnauthorized
	case sensorgate.KindSystem:
		return http.StatusInternalServerError
	default:
		return http.StatusOK
	}
}
