package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lumachat/lumachat/internal/assistant"
	"github.com/lumachat/lumachat/internal/chat"
	"github.com/lumachat/lumachat/internal/countries"
	"github.com/lumachat/lumachat/internal/otp"
	"github.com/lumachat/lumachat/internal/session"
	"github.com/lumachat/lumachat/internal/storage"
	"github.com/lumachat/lumachat/pkg/jwt"
	"github.com/lumachat/lumachat/pkg/middleware"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	state, err := storage.NewFileStore(storage.FileConfig{BasePath: t.TempDir()})
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	sessions := session.NewStore(state)
	chatStore := chat.NewStore(state)
	generator := assistant.NewSimulated(assistant.Config{}) // zero delays
	chatService := chat.NewService(chatStore, generator, 0)
	otpService := otp.NewService(otp.Config{}) // zero delays

	jwtManager, err := jwt.NewManager(time.Hour, "lumachat-test")
	if err != nil {
		t.Fatalf("jwt.NewManager: %v", err)
	}

	h := NewHandler(Deps{
		Sessions:       sessions,
		ChatStore:      chatStore,
		ChatService:    chatService,
		OTPService:     otpService,
		Countries:      countries.NewClient(countries.Config{URL: "http://127.0.0.1:1", Timeout: time.Second}),
		JWTManager:     jwtManager,
		AuthMiddleware: middleware.NewAuthMiddleware(jwtManager),
	})

	r := gin.New()
	h.RegisterRoutes(r)
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func login(t *testing.T, r *gin.Engine) string {
	t.Helper()

	w := doJSON(t, r, http.MethodPost, "/api/v1/auth/otp/verify", "", gin.H{
		"phone":        "5551234567",
		"country_code": "+1",
		"name":         "Ada",
		"otp":          "123456",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("verify otp status: want=200 got=%d body=%s", w.Code, w.Body.String())
	}

	var resp struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal verify response: %v", err)
	}
	if resp.Data.Token == "" {
		t.Fatalf("verify response missing token: %s", w.Body.String())
	}
	return resp.Data.Token
}

func TestVerifyOTPRejectsShortCode(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/v1/auth/otp/verify", "", gin.H{
		"phone":        "5551234567",
		"country_code": "+1",
		"name":         "Ada",
		"otp":          "12345",
	})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("short otp status: want=401 got=%d", w.Code)
	}
}

func TestSendOTP(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/v1/auth/otp/send", "", gin.H{
		"phone":        "5551234567",
		"country_code": "+1",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("send otp status: want=200 got=%d", w.Code)
	}
}

func TestChatroomRoutesRequireAuth(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(t, r, http.MethodGet, "/api/v1/chatrooms", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated list status: want=401 got=%d", w.Code)
	}
}

func TestCreateChatroomRejectsBlankTitle(t *testing.T) {
	r := newTestRouter(t)
	token := login(t, r)

	w := doJSON(t, r, http.MethodPost, "/api/v1/chatrooms", token, gin.H{"title": "   "})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("blank title status: want=400 got=%d", w.Code)
	}
}

func TestChatFlow(t *testing.T) {
	r := newTestRouter(t)
	token := login(t, r)

	// Create a room.
	w := doJSON(t, r, http.MethodPost, "/api/v1/chatrooms", token, gin.H{"title": "Trip Planning"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create room status: want=201 got=%d body=%s", w.Code, w.Body.String())
	}
	var createResp struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &createResp); err != nil {
		t.Fatalf("unmarshal create response: %v", err)
	}
	roomID := createResp.Data.ID
	if roomID == "" {
		t.Fatalf("create response missing room id")
	}

	// Send a message and get the assistant reply.
	w = doJSON(t, r, http.MethodPost, fmt.Sprintf("/api/v1/chatrooms/%s/messages", roomID), token, gin.H{"content": "Hello"})
	if w.Code != http.StatusCreated {
		t.Fatalf("send message status: want=201 got=%d body=%s", w.Code, w.Body.String())
	}
	var sendResp struct {
		Data struct {
			UserMessage      struct{ Content string } `json:"user_message"`
			AssistantMessage struct{ Content string } `json:"assistant_message"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &sendResp); err != nil {
		t.Fatalf("unmarshal send response: %v", err)
	}
	if sendResp.Data.UserMessage.Content != "Hello" {
		t.Fatalf("user message content: %+v", sendResp.Data)
	}
	if sendResp.Data.AssistantMessage.Content == "" {
		t.Fatalf("assistant reply missing: %s", w.Body.String())
	}

	// Both messages are listed in order.
	w = doJSON(t, r, http.MethodGet, fmt.Sprintf("/api/v1/chatrooms/%s/messages", roomID), token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list messages status: want=200 got=%d", w.Code)
	}
	var listResp struct {
		Data []struct {
			Role string `json:"role"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &listResp); err != nil {
		t.Fatalf("unmarshal list response: %v", err)
	}
	if len(listResp.Data) != 2 || listResp.Data[0].Role != "user" || listResp.Data[1].Role != "assistant" {
		t.Fatalf("listed messages: %+v", listResp.Data)
	}

	// Load older messages.
	w = doJSON(t, r, http.MethodPost, fmt.Sprintf("/api/v1/chatrooms/%s/messages/history", roomID), token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("load history status: want=200 got=%d", w.Code)
	}

	// Delete the room; a repeat delete stays 200.
	for i := 0; i < 2; i++ {
		w = doJSON(t, r, http.MethodDelete, "/api/v1/chatrooms/"+roomID, token, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("delete room status (attempt %d): want=200 got=%d", i+1, w.Code)
		}
	}

	// Messages of a deleted room are gone.
	w = doJSON(t, r, http.MethodGet, fmt.Sprintf("/api/v1/chatrooms/%s/messages", roomID), token, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("messages after delete status: want=404 got=%d", w.Code)
	}
}

func TestSendMessageToUnknownRoom(t *testing.T) {
	r := newTestRouter(t)
	token := login(t, r)

	w := doJSON(t, r, http.MethodPost, "/api/v1/chatrooms/no-such-room/messages", token, gin.H{"content": "Hello"})
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown room status: want=404 got=%d", w.Code)
	}
}

func TestSessionLifecycleOverHTTP(t *testing.T) {
	r := newTestRouter(t)

	// Logged out by default.
	w := doJSON(t, r, http.MethodGet, "/api/v1/auth/session", "", nil)
	var sessResp struct {
		Data struct {
			IsAuthenticated bool `json:"isAuthenticated"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &sessResp); err != nil {
		t.Fatalf("unmarshal session response: %v", err)
	}
	if sessResp.Data.IsAuthenticated {
		t.Fatalf("session should start unauthenticated")
	}

	token := login(t, r)

	w = doJSON(t, r, http.MethodGet, "/api/v1/auth/session", "", nil)
	if err := json.Unmarshal(w.Body.Bytes(), &sessResp); err != nil {
		t.Fatalf("unmarshal session response: %v", err)
	}
	if !sessResp.Data.IsAuthenticated {
		t.Fatalf("session should be authenticated after login")
	}

	// Logout revokes the token and clears the session.
	w = doJSON(t, r, http.MethodPost, "/api/v1/auth/logout", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("logout status: want=200 got=%d", w.Code)
	}
	w = doJSON(t, r, http.MethodGet, "/api/v1/chatrooms", token, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("revoked token status: want=401 got=%d", w.Code)
	}
}

func TestCountriesEndpointServesFallback(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(t, r, http.MethodGet, "/api/v1/countries", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("countries status: want=200 got=%d", w.Code)
	}
	var resp struct {
		Data []struct {
			Name        string `json:"name"`
			CallingCode string `json:"calling_code"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal countries response: %v", err)
	}
	if len(resp.Data) == 0 {
		t.Fatalf("countries fallback should not be empty")
	}
}
