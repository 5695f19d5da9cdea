package chatbot

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

func TestHandler_Send(t *testing.T) {
	e := echo.New()
	NewHandler(NewResponder(Config{Model: "gemini-test"}, zerolog.Nop())).RegisterRoutes(e.Group(""))

	req := httptest.NewRequest(http.MethodPost, "/chatbot/send", strings.NewReader(`{"message":"Hello","context":{"page":"dashboard"}}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var got Reply
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Reply != "[Demo Gemini] You said: Hello" || got.Model != "gemini-test" {
		t.Errorf("unexpected reply: %+v", got)
	}
}

func TestHandler_SendMalformed(t *testing.T) {
	e := echo.New()
	NewHandler(NewResponder(Config{}, zerolog.Nop())).RegisterRoutes(e.Group(""))

	req := httptest.NewRequest(http.MethodPost, "/chatbot/send", strings.NewReader(`{"message":`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}
