package handler

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/lumachat/lumachat/internal/chat"
	"github.com/lumachat/lumachat/internal/countries"
	"github.com/lumachat/lumachat/internal/domain"
	"github.com/lumachat/lumachat/internal/id"
	"github.com/lumachat/lumachat/internal/otp"
	"github.com/lumachat/lumachat/internal/session"
	"github.com/lumachat/lumachat/pkg/jwt"
	"github.com/lumachat/lumachat/pkg/log"
	"github.com/lumachat/lumachat/pkg/middleware"
	"github.com/lumachat/lumachat/pkg/response"
)

// Handler handles HTTP requests for the chat application.
type Handler struct {
	sessions       *session.Store
	chatStore      *chat.Store
	chatService    *chat.Service
	otpService     *otp.Service
	countries      *countries.Client
	jwtManager     *jwt.Manager
	authMiddleware *middleware.AuthMiddleware
}

// Deps collects the handler's collaborators.
type Deps struct {
	Sessions       *session.Store
	ChatStore      *chat.Store
	ChatService    *chat.Service
	OTPService     *otp.Service
	Countries      *countries.Client
	JWTManager     *jwt.Manager
	AuthMiddleware *middleware.AuthMiddleware
}

// NewHandler creates a new HTTP handler.
func NewHandler(deps Deps) *Handler {
	return &Handler{
		sessions:       deps.Sessions,
		chatStore:      deps.ChatStore,
		chatService:    deps.ChatService,
		otpService:     deps.OTPService,
		countries:      deps.Countries,
		jwtManager:     deps.JWTManager,
		authMiddleware: deps.AuthMiddleware,
	}
}

// RegisterRoutes registers all routes.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api/v1")
	{
		auth := api.Group("/auth")
		{
			auth.POST("/otp/send", h.SendOTP)
			auth.POST("/otp/verify", h.VerifyOTP)
			auth.POST("/logout", h.authMiddleware.RequireAuth(), h.Logout)
			auth.GET("/session", h.GetSession)
		}

		api.GET("/countries", h.ListCountries)

		rooms := api.Group("/chatrooms", h.authMiddleware.RequireAuth())
		{
			rooms.GET("", h.ListChatrooms)
			rooms.POST("", h.CreateChatroom)
			rooms.DELETE("/:id", h.DeleteChatroom)
			rooms.GET("/:id/messages", h.ListMessages)
			rooms.POST("/:id/messages", h.SendMessage)
			rooms.POST("/:id/messages/history", h.LoadMoreMessages)
		}
	}
}

type sendOTPRequest struct {
	Phone       string `json:"phone" binding:"required"`
	CountryCode string `json:"country_code" binding:"required"`
}

// SendOTP triggers a (simulated) passcode delivery.
func (h *Handler) SendOTP(c *gin.Context) {
	ctx := c.Request.Context()

	var req sendOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	sent, err := h.otpService.Send(ctx, req.Phone, req.CountryCode)
	if err != nil {
		response.InternalError(c, "failed to send otp")
		return
	}

	response.Success(c, gin.H{"sent": sent})
}

type verifyOTPRequest struct {
	Phone       string `json:"phone" binding:"required"`
	CountryCode string `json:"country_code" binding:"required"`
	Name        string `json:"name" binding:"required,min=2"`
	OTP         string `json:"otp" binding:"required"`
}

// VerifyOTP checks the passcode and, on success, creates the user and opens
// the session.
func (h *Handler) VerifyOTP(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	var req verifyOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	ok, err := h.otpService.Verify(ctx, req.Phone, req.CountryCode, req.OTP)
	if err != nil {
		response.InternalError(c, "failed to verify otp")
		return
	}
	if !ok {
		response.Unauthorized(c, "invalid otp")
		return
	}

	user := domain.User{
		ID:          id.NewUserID(),
		Phone:       req.Phone,
		CountryCode: req.CountryCode,
		Name:        req.Name,
	}
	h.sessions.Login(ctx, user)

	token, expiresAt, err := h.jwtManager.GenerateToken(user.ID, user.Phone, user.Name)
	if err != nil {
		l.Error().Err(err).Msg("failed to issue token")
		response.InternalError(c, "failed to issue token")
		return
	}

	response.Success(c, gin.H{
		"user":       user,
		"token":      token,
		"expires_at": expiresAt,
	})
}

// Logout closes the session and revokes the caller's tokens.
func (h *Handler) Logout(c *gin.Context) {
	ctx := c.Request.Context()

	if userID := middleware.GetUserID(c); userID != "" {
		h.jwtManager.RevokeUserTokens(userID)
	}
	h.sessions.Logout(ctx)

	response.Success(c, gin.H{"logged_out": true})
}

// GetSession returns the current session snapshot.
func (h *Handler) GetSession(c *gin.Context) {
	response.Success(c, h.sessions.Session())
}

// ListCountries returns the dialing directory.
func (h *Handler) ListCountries(c *gin.Context) {
	response.Success(c, h.countries.All(c.Request.Context()))
}

// ListChatrooms returns rooms newest-first, optionally filtered by title.
func (h *Handler) ListChatrooms(c *gin.Context) {
	response.Success(c, h.chatStore.Chatrooms(c.Query("q")))
}

// CreateChatroom creates a room. The trimmed title must be non-empty; the
// store relies on this validation happening here.
func (h *Handler) CreateChatroom(c *gin.Context) {
	ctx := c.Request.Context()

	var req domain.CreateChatroomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		response.BadRequest(c, "title must not be empty")
		return
	}

	room := h.chatStore.CreateChatroom(ctx, title)
	response.Created(c, room)
}

// DeleteChatroom removes a room and its messages. Idempotent.
func (h *Handler) DeleteChatroom(c *gin.Context) {
	h.chatStore.DeleteChatroom(c.Request.Context(), c.Param("id"))
	response.Success(c, gin.H{"deleted": true})
}

// ListMessages returns a room's messages oldest-first.
func (h *Handler) ListMessages(c *gin.Context) {
	msgs, err := h.chatStore.Messages(c.Param("id"))
	if err != nil {
		response.NotFound(c, "chatroom not found")
		return
	}
	response.Success(c, msgs)
}

// SendMessage appends the user message and the assistant reply.
func (h *Handler) SendMessage(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)
	roomID := c.Param("id")

	var req domain.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	content := strings.TrimSpace(req.Content)
	if content == "" && req.ImageURL == "" {
		response.BadRequest(c, "message must have content or an image")
		return
	}

	result, err := h.chatService.SendMessage(ctx, roomID, content, req.ImageURL)
	if err != nil {
		switch {
		case errors.Is(err, chat.ErrChatroomNotFound):
			response.NotFound(c, "chatroom not found")
		case errors.Is(err, chat.ErrReplyPending):
			response.TooManyRequests(c, "REPLY_PENDING", "a reply is already being generated for this chatroom")
		default:
			l.Error().Err(err).Str(log.FieldChatroomID, roomID).Msg("failed to send message")
			response.InternalError(c, "failed to send message")
		}
		return
	}

	response.Created(c, result)
}

// LoadMoreMessages prepends a batch of older messages to the room.
func (h *Handler) LoadMoreMessages(c *gin.Context) {
	ctx := c.Request.Context()
	roomID := c.Param("id")

	batch, err := h.chatService.LoadMore(ctx, roomID)
	if err != nil {
		if errors.Is(err, chat.ErrChatroomNotFound) {
			response.NotFound(c, "chatroom not found")
			return
		}
		ctxLogger := log.Ctx(ctx)
		ctxLogger.Error().Err(err).Str(log.FieldChatroomID, roomID).Msg("failed to load older messages")
		response.InternalError(c, "failed to load older messages")
		return
	}

	response.Success(c, batch)
}
