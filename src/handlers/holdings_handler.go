package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/username/brokerbridge/src/logger"
	"github.com/username/brokerbridge/src/services"
	"github.com/username/brokerbridge/src/utils"
)

type HoldingsHandler struct {
	holdingsService services.HoldingsService
}

func NewHoldingsHandler(service services.HoldingsService) *HoldingsHandler {
	return &HoldingsHandler{holdingsService: service}
}

// memberFilter reads ?member_id=. An empty filter lists every member.
func memberFilter(r *http.Request) (string, error) {
	memberID := strings.TrimSpace(r.URL.Query().Get("member_id"))
	if memberID == "" {
		return "", nil
	}
	if _, err := uuid.Parse(memberID); err != nil {
		return "", errors.New("member_id must be a uuid")
	}
	return memberID, nil
}

func (h *HoldingsHandler) HandleGetEquityHoldings(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required or user ID not found in context", http.StatusUnauthorized)
		return
	}
	memberID, err := memberFilter(r)
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	holdings, err := h.holdingsService.GetEquityHoldings(r.Context(), userID, memberID)
	if err != nil {
		sendServiceError(w, err, userID, "list equity holdings")
		return
	}
	sendWithETag(w, r, userID, "equity holdings", holdings)
}

func (h *HoldingsHandler) HandleGetMutualFundHoldings(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required or user ID not found in context", http.StatusUnauthorized)
		return
	}
	memberID, err := memberFilter(r)
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	holdings, err := h.holdingsService.GetMutualFundHoldings(r.Context(), userID, memberID)
	if err != nil {
		sendServiceError(w, err, userID, "list mutual fund holdings")
		return
	}
	sendWithETag(w, r, userID, "mutual fund holdings", holdings)
}

// sendWithETag writes data, or 304 when the client already holds the same ETag.
func sendWithETag(w http.ResponseWriter, r *http.Request, userID, label string, data any) {
	currentETag, etagErr := utils.GenerateETag(data)
	if etagErr != nil {
		logger.L.Error("Failed to generate ETag", "data", label, "userID", userID, "error", etagErr)
	}

	w.Header().Set("Cache-Control", "no-cache, private")

	if etagErr == nil && currentETag != "" {
		quotedETag := fmt.Sprintf("\"%s\"", currentETag)
		w.Header().Set("ETag", quotedETag)
		clientETag := r.Header.Get("If-None-Match")
		for _, cETag := range strings.Split(clientETag, ",") {
			if strings.TrimSpace(cETag) == quotedETag {
				logger.L.Debug("ETag match", "data", label, "userID", userID, "etag", currentETag)
				w.WriteHeader(http.StatusNotModified)
				return
			}
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.L.Error("Error encoding JSON response", "data", label, "userID", userID, "error", err)
	}
}

// HandleHealth is unauthenticated.
func HandleHealth(w http.ResponseWriter, r *http.Request) {
	utils.SendJSON(w, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	}, http.StatusOK)
}
