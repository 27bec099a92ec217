package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"golang.org/x/time/rate"

	"ukwikibot/internal/entities"
	"ukwikibot/internal/infrastructure"
	"ukwikibot/internal/usecases"
	"ukwikibot/pkg/log"
)

const (
	requestTimeout = 30 * time.Second
	qrSize         = 256
)

// Assistant answers chat messages.
type Assistant interface {
	Classify(text string) (usecases.Match, bool)
	Ask(ctx context.Context, text string) (entities.Response, error)
	Process(ctx context.Context, msg entities.Message) (entities.Response, error)
}

type Authenticator interface {
	TokenParser
	Login(ctx context.Context, username, password string) (string, error)
}

type StatsProvider interface {
	Summary(ctx context.Context, days int) (*usecases.UsageStats, error)
}

// WhatsAppSession is the pairing state of the WhatsApp gateway.
type WhatsAppSession interface {
	QRPNG(size int) ([]byte, error)
	IsLoggedIn() bool
	IsConnected() bool
	GetPhoneNumber() string
	Logout(ctx context.Context) error
}

// RuntimeStats reports in-process counters for the health endpoint.
type RuntimeStats interface {
	GetStats() map[string]interface{}
}

// Dependencies of the HTTP API. WhatsApp and Runtime may be nil.
type Dependencies struct {
	Assistant Assistant
	Auth      Authenticator
	Stats     StatsProvider
	WhatsApp  WhatsAppSession
	Runtime   RuntimeStats
	Validator *validator.Validate
}

type Options struct {
	UserRate     float64
	UserBurst    int
	MaxBodyBytes int64
}

type Handler struct {
	assistant Assistant
	auth      Authenticator
	stats     StatsProvider
	whatsApp  WhatsAppSession
	runtime   RuntimeStats
	validate  *validator.Validate
}

func NewHandler(deps Dependencies) *Handler {
	v := deps.Validator
	if v == nil {
		v = NewValidator()
	}
	return &Handler{
		assistant: deps.Assistant,
		auth:      deps.Auth,
		stats:     deps.Stats,
		whatsApp:  deps.WhatsApp,
		runtime:   deps.Runtime,
		validate:  v,
	}
}

type LoginRequest struct {
	Username string `json:"username" validate:"required,max=64,username"`
	Password string `json:"password" validate:"required,max=128"`
}

type MessageRequest struct {
	Text string `json:"text" validate:"required,max=4096"`
}

type WebMessageRequest struct {
	From    string `json:"from" validate:"required,max=64"`
	Content string `json:"content" validate:"required,max=4096"`
}

type StatsQuery struct {
	Days int `form:"days" validate:"omitempty,min=1,max=366"`
}

type ItemDTO struct {
	Kind      entities.ResponseKind `json:"kind"`
	Text      string                `json:"text,omitempty"`
	Latitude  *float64              `json:"latitude,omitempty"`
	Longitude *float64              `json:"longitude,omitempty"`
	Image     []byte                `json:"image,omitempty"`
	Caption   string                `json:"caption,omitempty"`
}

type ResponseDTO struct {
	Intent entities.Intent       `json:"intent"`
	Kind   entities.ResponseKind `json:"kind"`
	Items  []ItemDTO             `json:"items"`
}

func toDTO(resp entities.Response) ResponseDTO {
	dto := ResponseDTO{Intent: resp.Intent, Kind: resp.Kind, Items: make([]ItemDTO, 0, len(resp.Items))}
	for _, it := range resp.Items {
		item := ItemDTO{
			Kind:    it.Kind,
			Text:    it.Text,
			Image:   it.Image,
			Caption: it.Caption,
		}
		// Coordinates are always present on location items, 0.0 included.
		if it.Kind == entities.KindCoordinates {
			lat, lon := it.Latitude, it.Longitude
			item.Latitude, item.Longitude = &lat, &lon
		}
		dto.Items = append(dto.Items, item)
	}
	return dto
}

func SetupRoutes(r *gin.Engine, deps Dependencies, opts Options, middleware *Middleware) {
	h := NewHandler(deps)

	r.Use(RequestID())
	r.Use(AccessLog())
	r.Use(SecurityHeaders())
	r.Use(RequestSizeLimiter(opts.MaxBodyBytes))
	r.Use(middleware.CORSMiddleware())

	r.GET("/health", h.Health)

	// Public Routes
	r.POST("/webhook/web", middleware.RateLimitPerIP(rate.Limit(opts.UserRate), opts.UserBurst), h.HandleWebMessage)
	r.POST("/api/auth/login", h.Login)

	api := r.Group("/api")
	api.Use(middleware.AuthRequired())
	api.Use(middleware.RateLimitPerUser(rate.Limit(opts.UserRate), opts.UserBurst))
	{
		api.POST("/classify", h.Classify)
		api.POST("/ask", h.Ask)
		api.GET("/stats", h.Stats)
	}

	admin := r.Group("/api/whatsapp")
	admin.Use(middleware.AuthRequired())
	admin.Use(middleware.AdminRequired())
	{
		admin.GET("/qr", h.WhatsAppQR)
		admin.GET("/status", h.WhatsAppStatus)
		admin.POST("/logout", h.WhatsAppLogout)
	}
}

// bind decodes and validates a JSON body, writing the error response on failure.
func (h *Handler) bind(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return false
	}
	if err := h.validate.Struct(req); err != nil {
		log.WithRequestID(c.Request.Context()).WithFields(log.Fields{
			"path":  c.FullPath(),
			"error": err.Error(),
		}).Warn("[Handler.bind] validation failed")
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Validation failed: " + ValidationMessage(err),
			"code":  "VALIDATION_ERROR",
		})
		return false
	}
	return true
}

func (h *Handler) Health(c *gin.Context) {
	body := gin.H{"status": "ok"}
	if h.runtime != nil {
		body["chats"] = h.runtime.GetStats()
	}
	c.JSON(http.StatusOK, body)
}

func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if !h.bind(c, &req) {
		return
	}
	token, err := h.auth.Login(c.Request.Context(), req.Username, req.Password)
	if errors.Is(err, usecases.ErrInvalidCredentials) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}
	if err != nil {
		h.internalError(c, err, "login")
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

func (h *Handler) Classify(c *gin.Context) {
	var req MessageRequest
	if !h.bind(c, &req) {
		return
	}
	match, ok := h.assistant.Classify(SanitizeString(req.Text))
	if !ok {
		c.JSON(http.StatusOK, gin.H{"matched": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"matched": true,
		"intent":  match.Intent,
		"kind":    match.Intent.Kind(),
		"args":    match.Args,
	})
}

func (h *Handler) Ask(c *gin.Context) {
	var req MessageRequest
	if !h.bind(c, &req) {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	resp, err := h.assistant.Ask(ctx, SanitizeString(req.Text))
	if errors.Is(err, usecases.ErrNoIntent) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Message does not match any intent"})
		return
	}
	if err != nil {
		h.internalError(c, err, "ask")
		return
	}
	c.JSON(http.StatusOK, toDTO(resp))
}

// HandleWebMessage answers a message from the web widget synchronously.
func (h *Handler) HandleWebMessage(c *gin.Context) {
	var req WebMessageRequest
	if !h.bind(c, &req) {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	resp, err := h.assistant.Process(ctx, entities.Message{
		ChatID:     req.From,
		From:       req.From,
		Content:    SanitizeString(req.Content),
		Platform:   entities.PlatformWeb,
		ReceivedAt: time.Now(),
	})
	switch {
	case errors.Is(err, usecases.ErrRateLimited):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded"})
	case errors.Is(err, usecases.ErrNoIntent):
		c.Status(http.StatusNoContent)
	case err != nil:
		h.internalError(c, err, "web_message")
	default:
		c.JSON(http.StatusOK, toDTO(resp))
	}
}

func (h *Handler) Stats(c *gin.Context) {
	var q StatsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid query"})
		return
	}
	if err := h.validate.Struct(q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Validation failed: " + ValidationMessage(err), "code": "VALIDATION_ERROR"})
		return
	}
	if q.Days == 0 {
		q.Days = 7
	}

	stats, err := h.stats.Summary(c.Request.Context(), q.Days)
	if err != nil {
		h.internalError(c, err, "stats")
		return
	}
	c.JSON(http.StatusOK, stats)
}

// WhatsAppQR returns the pairing QR code as PNG.
func (h *Handler) WhatsAppQR(c *gin.Context) {
	if h.whatsApp == nil {
		c.String(http.StatusServiceUnavailable, "WhatsApp not configured")
		return
	}
	if h.whatsApp.IsLoggedIn() {
		c.String(http.StatusOK, "Already logged in")
		return
	}

	png, err := h.whatsApp.QRPNG(qrSize)
	if errors.Is(err, infrastructure.ErrNoQRCode) {
		c.String(http.StatusAccepted, "QR code not yet available. Please wait...")
		return
	}
	if err != nil {
		c.String(http.StatusInternalServerError, "Failed to generate QR code")
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

func (h *Handler) WhatsAppStatus(c *gin.Context) {
	if h.whatsApp == nil {
		c.JSON(http.StatusOK, gin.H{"configured": false, "connected": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"configured": true,
		"logged_in":  h.whatsApp.IsLoggedIn(),
		"connected":  h.whatsApp.IsConnected(),
		"phone":      h.whatsApp.GetPhoneNumber(),
	})
}

// WhatsAppLogout drops the paired device; a new QR code becomes available.
func (h *Handler) WhatsAppLogout(c *gin.Context) {
	if h.whatsApp == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "WhatsApp not configured"})
		return
	}
	if err := h.whatsApp.Logout(c.Request.Context()); err != nil {
		h.internalError(c, err, "whatsapp_logout")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

func (h *Handler) internalError(c *gin.Context, err error, operation string) {
	traceID := log.ErrorWithTraceID(log.Fields{
		log.RequestIDKey: log.RequestID(c.Request.Context()),
		"path":           c.FullPath(),
		"operation":      operation,
		"error":          err.Error(),
	}, "[Handler] unexpected error")
	c.JSON(http.StatusInternalServerError, gin.H{
		"error":    "An unexpected error occurred",
		"trace_id": traceID,
	})
}
