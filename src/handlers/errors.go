package handlers

import (
	"net/http"

	"github.com/username/brokerbridge/src/logger"
	"github.com/username/brokerbridge/src/services"
	"github.com/username/brokerbridge/src/utils"
)

var statusByKind = map[services.ErrorKind]int{
	services.KindInvalidScope:          http.StatusBadRequest,
	services.KindInvalidPayload:        http.StatusBadRequest,
	services.KindMalformedPayloadEntry: http.StatusBadRequest,
	services.KindUnsupported:           http.StatusBadRequest,
	services.KindOTPRejected:           http.StatusUnauthorized,
	services.KindLoginNotFound:         http.StatusNotFound,
	services.KindUnknownBroker:         http.StatusNotFound,
	services.KindNotConnected:          http.StatusConflict,
	services.KindUpstreamUnavailable:   http.StatusBadGateway,
	services.KindInternal:              http.StatusInternalServerError,
}

// StatusForError maps a service error to the HTTP status the API answers with.
func StatusForError(err error) int {
	if status, ok := statusByKind[services.KindOf(err)]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// sendServiceError answers err as {"error", "kind"}. Internal failures get a
// generic message; the detail only goes to the log.
func sendServiceError(w http.ResponseWriter, err error, userID, action string) {
	kind := services.KindOf(err)
	status := StatusForError(err)
	message := err.Error()
	if status >= http.StatusInternalServerError && kind == services.KindInternal {
		logger.L.Error("Internal error", "action", action, "userID", userID, "error", err)
		message = "An internal error occurred. Please try again later."
	} else {
		logger.L.Warn("Request failed", "action", action, "userID", userID, "kind", kind, "error", err)
	}
	utils.SendJSONError(w, message, status, string(kind))
}
