package messages

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/subhive/subhive/backend/internal/auth"
	"github.com/subhive/subhive/backend/internal/chat"
	"github.com/subhive/subhive/backend/internal/storage/memory"
	"github.com/subhive/subhive/backend/pkg/models"
)

func newTestAPI(t *testing.T, secret string) (*gin.Engine, *memory.Memory, *chat.Hub) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	store := memory.New()
	hub := chat.NewHub()
	router := chat.NewRouter(hub, store)

	r := gin.New()
	Register(r.Group("/api", auth.JWTMiddleware(secret)), store, router)
	return r, store, hub
}

func doJSON(t *testing.T, r *gin.Engine, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestSendPersistsThenPushes(t *testing.T) {
	r, store, hub := newTestAPI(t, "")

	tab := &chat.Client{Hub: hub, Send: make(chan []byte, 8)}
	hub.Track(tab)
	hub.Bind(tab, "bob")

	w := doJSON(t, r, http.MethodPost, "/api/messages",
		`{"sender":"alice","recipient":"bob","content":"hey"}`, "")
	if w.Code != http.StatusCreated {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}

	var created models.Message
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatal(err)
	}
	if created.ConversationID == "" || created.Type != models.MessageText {
		t.Fatalf("bad response body: %+v", created)
	}

	stored, err := store.MessagesForConversation(context.Background(), created.ConversationID)
	if err != nil {
		t.Fatal(err)
	}
	if len(stored) != 1 || stored[0].ID != created.ID {
		t.Fatalf("stored = %+v", stored)
	}

	select {
	case raw := <-tab.Send:
		var f struct {
			Type string         `json:"type"`
			Data models.Message `json:"data"`
		}
		if err := json.Unmarshal(raw, &f); err != nil {
			t.Fatal(err)
		}
		if f.Type != "new_message" || f.Data.ID != created.ID {
			t.Fatalf("pushed frame %s %+v", f.Type, f.Data)
		}
	default:
		t.Fatal("no live push to the recipient")
	}
}

func TestSendToUnknownConversation(t *testing.T) {
	r, _, _ := newTestAPI(t, "")
	w := doJSON(t, r, http.MethodPost, "/api/messages",
		`{"conversationId":"missing","sender":"alice","recipient":"bob"}`, "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
}

func TestSendWithBearerGuardUsesTokenIdentityAsSender(t *testing.T) {
	const secret = "test-secret"
	r, _, _ := newTestAPI(t, secret)

	tok, err := auth.NewToken(secret, "alice", 60)
	if err != nil {
		t.Fatal(err)
	}

	// the body claims someone else; the token wins
	w := doJSON(t, r, http.MethodPost, "/api/messages",
		`{"sender":"mallory","recipient":"bob","content":"hi"}`, tok)
	if w.Code != http.StatusCreated {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	var created models.Message
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatal(err)
	}
	if created.Sender != "alice" {
		t.Fatalf("sender = %q, want token identity", created.Sender)
	}

	// no token at all is rejected outright
	w = doJSON(t, r, http.MethodPost, "/api/messages",
		`{"sender":"mallory","recipient":"bob"}`, "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
}
