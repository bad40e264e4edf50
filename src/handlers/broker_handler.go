package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/username/brokerbridge/src/logger"
	"github.com/username/brokerbridge/src/models"
	"github.com/username/brokerbridge/src/parsers"
	"github.com/username/brokerbridge/src/security/validation"
	"github.com/username/brokerbridge/src/services"
	"github.com/username/brokerbridge/src/utils"
)

// ScopeResolver decides which members a broker import writes for.
type ScopeResolver interface {
	Scope(userID, slug string) (models.ImportScope, error)
}

type BrokerHandler struct {
	loginService    services.LoginService
	importService   services.ImportService
	holdingsService services.HoldingsService
	scopes          ScopeResolver
	maxUploadSize   int64
}

func NewBrokerHandler(
	loginService services.LoginService,
	importService services.ImportService,
	holdingsService services.HoldingsService,
	scopes ScopeResolver,
	maxUploadSize int64,
) *BrokerHandler {
	return &BrokerHandler{
		loginService:    loginService,
		importService:   importService,
		holdingsService: holdingsService,
		scopes:          scopes,
		maxUploadSize:   maxUploadSize,
	}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type otpRequest struct {
	LoginID string `json:"loginId"`
	OTP     string `json:"otp"`
}

type syncRequest struct {
	AccessToken  string `json:"accessToken"`
	RequestToken string `json:"requestToken"`
}

// decodeBody reads a JSON request body into v. An empty body leaves v untouched.
func decodeBody(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func brokerSlug(r *http.Request) string {
	return strings.ToLower(strings.TrimSpace(r.PathValue("broker")))
}

// HandleLogin starts a broker OTP login with the user's broker credentials.
func (h *BrokerHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required or user ID not found in context", http.StatusUnauthorized)
		return
	}
	slug := brokerSlug(r)

	var req loginRequest
	if err := decodeBody(r, &req); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		utils.SendJSONError(w, "username and password are required", http.StatusBadRequest)
		return
	}

	logger.L.Info("Broker login requested", "userID", userID, "broker", slug, "username", validation.MaskSecret(req.Username))
	started, err := h.loginService.StartLogin(r.Context(), userID, slug, req.Username, req.Password)
	if err != nil {
		sendServiceError(w, err, userID, "broker login")
		return
	}
	utils.SendJSON(w, started, http.StatusOK)
}

// HandleOTP answers the OTP, then imports the holdings the broker returns.
func (h *BrokerHandler) HandleOTP(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required or user ID not found in context", http.StatusUnauthorized)
		return
	}
	slug := brokerSlug(r)

	var req otpRequest
	if err := decodeBody(r, &req); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	req.LoginID = strings.TrimSpace(req.LoginID)
	req.OTP = strings.TrimSpace(req.OTP)
	if req.LoginID == "" || req.OTP == "" {
		utils.SendJSONError(w, "loginId and otp are required", http.StatusBadRequest)
		return
	}

	raw, err := h.loginService.CompleteLogin(r.Context(), userID, slug, req.LoginID, req.OTP)
	if err != nil {
		sendServiceError(w, err, userID, "broker otp")
		return
	}
	h.importAndRespond(w, r, userID, slug, raw)
}

// HandleSync re-imports using the stored broker session, an explicit access
// token, or a request token to exchange first.
func (h *BrokerHandler) HandleSync(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required or user ID not found in context", http.StatusUnauthorized)
		return
	}
	slug := brokerSlug(r)

	var req syncRequest
	if err := decodeBody(r, &req); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if rt := strings.TrimSpace(req.RequestToken); rt != "" {
		if err := h.loginService.ExchangeRequestToken(r.Context(), userID, slug, rt); err != nil {
			sendServiceError(w, err, userID, "request token exchange")
			return
		}
	}

	raw, err := h.loginService.FetchHoldings(r.Context(), userID, slug, req.AccessToken)
	if err != nil {
		sendServiceError(w, err, userID, "broker sync")
		return
	}
	h.importAndRespond(w, r, userID, slug, raw)
}

// HandleImport imports a holdings snapshot uploaded as the multipart field "file".
func (h *BrokerHandler) HandleImport(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required or user ID not found in context", http.StatusUnauthorized)
		return
	}
	slug := brokerSlug(r)

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize+(1<<20))
	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		logger.L.Warn("Failed to parse multipart form or request too large", "userID", userID, "error", err, "limit", h.maxUploadSize)
		utils.SendJSONError(w, fmt.Sprintf("Failed to parse form or request too large (max %d MB)", h.maxUploadSize/(1024*1024)), http.StatusBadRequest)
		return
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		logger.L.Warn("Failed to retrieve file from request", "userID", userID, "error", err)
		utils.SendJSONError(w, "Failed to retrieve file from request. Ensure 'file' field is used.", http.StatusBadRequest)
		return
	}
	defer file.Close()

	if fileHeader.Size > h.maxUploadSize {
		logger.L.Warn("Uploaded file header reports size too large", "userID", userID, "fileSize", fileHeader.Size, "limit", h.maxUploadSize)
		utils.SendJSONError(w, fmt.Sprintf("File too large, max %d MB", h.maxUploadSize/(1024*1024)), http.StatusBadRequest)
		return
	}

	clientContentType := fileHeader.Header.Get("Content-Type")
	if err := validation.ValidateClientContentType(clientContentType); err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	detectedContentType, err := validation.ValidateFileContentByMagicBytes(file)
	if err != nil {
		logger.L.Warn("Server-side file content validation failed", "userID", userID, "filename", fileHeader.Filename, "error", err)
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	logger.L.Info("Holdings snapshot validated", "userID", userID, "broker", slug, "filename", fileHeader.Filename, "detectedType", detectedContentType)

	raw, err := parsers.DecodePayloadFrom(file)
	if err != nil {
		sendServiceError(w, err, userID, "snapshot upload")
		return
	}
	h.importAndRespond(w, r, userID, slug, raw)
}

func (h *BrokerHandler) importAndRespond(w http.ResponseWriter, r *http.Request, userID, slug string, raw any) {
	scope, err := h.scopes.Scope(userID, slug)
	if err != nil {
		sendServiceError(w, err, userID, "import scope")
		return
	}

	result, err := h.importService.ImportHoldings(r.Context(), raw, scope)
	if err != nil {
		sendServiceError(w, err, userID, "import holdings")
		return
	}
	h.loginService.MarkSynced(userID, slug, result.CompletedAt)

	logger.L.Info("Broker holdings imported", "userID", userID, "broker", slug,
		"equity", result.EquityCount, "mutualFunds", result.MutualFundCount, "skipped", result.Skipped)
	utils.SendJSON(w, result, http.StatusOK)
}

// HandleStatus reports the broker session state and the latest stored import.
func (h *BrokerHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required or user ID not found in context", http.StatusUnauthorized)
		return
	}
	slug := brokerSlug(r)

	status, err := h.loginService.Status(userID, slug)
	if err != nil {
		sendServiceError(w, err, userID, "broker status")
		return
	}

	if scope, err := h.scopes.Scope(userID, slug); err == nil {
		day, found, err := h.holdingsService.GetLatestImportDate(r.Context(), userID, scope.BrokerPlatform)
		if err != nil {
			logger.L.Warn("Could not read latest import date", "userID", userID, "broker", slug, "error", err)
		} else if found {
			status.LastImportDate = utils.FormatDate(day)
		}
	}

	utils.SendJSON(w, status, http.StatusOK)
}
