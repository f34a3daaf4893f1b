package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"campus-chat/config"
	"campus-chat/models"
	"campus-chat/repository"
	"campus-chat/services"
)

type fakeHub struct {
	broadcasts int
}

func (f *fakeHub) BroadcastMessage(string, models.EnrichedMessage) { f.broadcasts++ }

type env struct {
	router  *mux.Router
	authSvc *services.AuthService
	msgs    repository.MessageRepository
	hub     *fakeHub
	db      *sqlx.DB
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db, err := repository.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cfg := &config.Config{JWTSecret: "test-secret", JWTExpiry: time.Hour, MaxMessageLength: 1000}
	messageRepo := repository.NewSQLiteMessageRepo(db)
	profileRepo := repository.NewSQLiteProfileRepo(db)
	hub := &fakeHub{}

	authSvc := services.NewAuthService(profileRepo, cfg)
	msgSvc := services.NewMessageService(messageRepo, profileRepo, hub, cfg, slog.Default())

	authH := NewAuthHandler(authSvc)
	msgH := NewMessageHandler(msgSvc, authSvc, slog.Default())

	r := mux.NewRouter()
	r.HandleFunc("/api/register", authH.Register).Methods("POST")
	r.HandleFunc("/api/login", authH.Login).Methods("POST")
	r.HandleFunc("/api/send", msgH.WithAuth(msgH.Send)).Methods("POST")
	r.HandleFunc("/api/history/{counterpartId}", msgH.WithAuth(msgH.History)).Methods("GET")
	r.HandleFunc("/api/conversations", msgH.WithAuth(msgH.Conversations)).Methods("GET")
	r.HandleFunc("/api/mark-read", msgH.WithAuth(msgH.MarkRead)).Methods("POST")

	return &env{router: r, authSvc: authSvc, msgs: messageRepo, hub: hub, db: db}
}

// register creates a portal account through the API and returns its token.
func (e *env) register(t *testing.T, name, email, role string) (string, models.Identity) {
	t.Helper()
	body, _ := json.Marshal(map[string]string{
		"name": name, "email": email, "role": role, "password": "secret123",
	})
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, httptest.NewRequest("POST", "/api/register", bytes.NewReader(body)))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Data struct {
			Token string `json:"token"`
			User  struct {
				ID   int    `json:"id"`
				Role string `json:"role"`
			} `json:"user"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Data.Token, models.Identity{ID: resp.Data.User.ID, Role: models.Role(resp.Data.User.Role)}
}

func (e *env) do(t *testing.T, method, path, token string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	if payload != nil {
		require.NoError(t, json.NewEncoder(&body).Encode(payload))
	}
	req := httptest.NewRequest(method, path, &body)
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func Test_Send_RequiresAuth(t *testing.T) {
	req := require.New(t)
	e := newEnv(t)

	w := e.do(t, "POST", "/api/send", "", map[string]any{"receiver_id": 1, "receiver_role": "faculty", "content": "x"})
	req.Equal(http.StatusUnauthorized, w.Code)

	w = e.do(t, "POST", "/api/send", "not-a-token", map[string]any{"receiver_id": 1, "receiver_role": "faculty", "content": "x"})
	req.Equal(http.StatusUnauthorized, w.Code)
}

func Test_Send_Scenario(t *testing.T) {
	req := require.New(t)
	e := newEnv(t)
	studentToken, student := e.register(t, "Ada Student", "ada@campus.edu", "student")
	_, faculty := e.register(t, "Grace Faculty", "grace@campus.edu", "faculty")

	w := e.do(t, "POST", "/api/send", studentToken, map[string]any{
		"receiver_id": faculty.ID, "receiver_role": "faculty", "content": "Hello",
	})
	req.Equal(http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Data models.EnrichedMessage `json:"data"`
	}
	req.NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	req.Equal(student, resp.Data.Sender())
	req.Equal(faculty, resp.Data.Receiver())
	req.Equal("Hello", resp.Data.Content)
	req.False(resp.Data.IsRead)
	req.Equal(1, e.hub.broadcasts)
}

func Test_Send_ValidationRejected(t *testing.T) {
	req := require.New(t)
	e := newEnv(t)
	token, _ := e.register(t, "Ada Student", "ada@campus.edu", "student")

	// Missing receiver identity.
	w := e.do(t, "POST", "/api/send", token, map[string]any{"content": "Hello"})
	req.Equal(http.StatusBadRequest, w.Code)

	// Empty content.
	w = e.do(t, "POST", "/api/send", token, map[string]any{"receiver_id": 1, "receiver_role": "faculty"})
	req.Equal(http.StatusBadRequest, w.Code)

	// Unknown role.
	w = e.do(t, "POST", "/api/send", token, map[string]any{"receiver_id": 1, "receiver_role": "dean", "content": "Hello"})
	req.Equal(http.StatusBadRequest, w.Code)
}

func Test_History_ReadOnFetch(t *testing.T) {
	req := require.New(t)
	e := newEnv(t)
	studentToken, student := e.register(t, "Ada Student", "ada@campus.edu", "student")
	facultyToken, faculty := e.register(t, "Grace Faculty", "grace@campus.edu", "faculty")

	w := e.do(t, "POST", "/api/send", studentToken, map[string]any{
		"receiver_id": faculty.ID, "receiver_role": "faculty", "content": "Hello",
	})
	req.Equal(http.StatusOK, w.Code)

	// The faculty member fetches the thread.
	w = e.do(t, "GET", fmt.Sprintf("/api/history/%d?role=student", student.ID), facultyToken, nil)
	req.Equal(http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Data []models.Message `json:"data"`
	}
	req.NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	req.Len(resp.Data, 1)
	req.Equal("Hello", resp.Data[0].Content)

	// A subsequent direct read shows is_read flipped by the fetch.
	history, err := e.msgs.History(student, faculty)
	req.NoError(err)
	req.True(history[0].IsRead)
}

func Test_History_RoleParamRequired(t *testing.T) {
	req := require.New(t)
	e := newEnv(t)
	token, _ := e.register(t, "Ada Student", "ada@campus.edu", "student")

	w := e.do(t, "GET", "/api/history/2", token, nil)
	req.Equal(http.StatusBadRequest, w.Code)

	w = e.do(t, "GET", "/api/history/abc?role=faculty", token, nil)
	req.Equal(http.StatusBadRequest, w.Code)
}

func Test_Conversations_Scenario(t *testing.T) {
	req := require.New(t)
	e := newEnv(t)
	studentToken, student := e.register(t, "Ada Student", "ada@campus.edu", "student")
	faculty2Token, _ := e.register(t, "Grace Faculty", "grace@campus.edu", "faculty")
	faculty3Token, _ := e.register(t, "Alan Faculty", "alan@campus.edu", "faculty")

	// faculty#3 first (older), read by the student; then faculty#2, unread.
	w := e.do(t, "POST", "/api/send", faculty3Token, map[string]any{
		"receiver_id": student.ID, "receiver_role": "student", "content": "old news",
	})
	req.Equal(http.StatusOK, w.Code)
	w = e.do(t, "POST", "/api/mark-read", studentToken, map[string]any{"sender_id": 2, "sender_role": "faculty"})
	req.Equal(http.StatusOK, w.Code)

	w = e.do(t, "POST", "/api/send", faculty2Token, map[string]any{
		"receiver_id": student.ID, "receiver_role": "student", "content": "please see me",
	})
	req.Equal(http.StatusOK, w.Code)

	w = e.do(t, "GET", "/api/conversations", studentToken, nil)
	req.Equal(http.StatusOK, w.Code)

	var resp struct {
		Data []models.ConversationSummary `json:"data"`
	}
	req.NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	req.Len(resp.Data, 2)
	req.Equal("Grace Faculty", resp.Data[0].CounterpartName)
	req.Equal("grace@campus.edu", resp.Data[0].CounterpartEmail)
	req.Equal(1, resp.Data[0].UnreadCount)
	req.Equal("Alan Faculty", resp.Data[1].CounterpartName)
	req.Equal(0, resp.Data[1].UnreadCount)
	req.True(resp.Data[0].LastMessageTime.After(resp.Data[1].LastMessageTime))
}

// A failing store degrades the conversation list to an empty 200 while the
// same failure on the history endpoint surfaces as a 500. The asymmetry is
// deliberate: a dead badge list is tolerable, a silently empty thread is not.
func Test_StoreFailure_Asymmetry(t *testing.T) {
	req := require.New(t)
	e := newEnv(t)
	token, _ := e.register(t, "Ada Student", "ada@campus.edu", "student")

	req.NoError(e.db.Close())

	w := e.do(t, "GET", "/api/conversations", token, nil)
	req.Equal(http.StatusOK, w.Code, w.Body.String())
	var resp struct {
		Data []models.ConversationSummary `json:"data"`
	}
	req.NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	req.Empty(resp.Data)

	w = e.do(t, "GET", "/api/history/2?role=faculty", token, nil)
	req.Equal(http.StatusInternalServerError, w.Code)

	// A send against the dead store is an explicit failure: nothing stored,
	// nothing fanned out.
	w = e.do(t, "POST", "/api/send", token, map[string]any{
		"receiver_id": 2, "receiver_role": "faculty", "content": "Hello",
	})
	req.Equal(http.StatusInternalServerError, w.Code)
	req.Equal(0, e.hub.broadcasts)
}

func Test_Conversations_EmptyForNewUser(t *testing.T) {
	req := require.New(t)
	e := newEnv(t)
	token, _ := e.register(t, "Ada Student", "ada@campus.edu", "student")

	w := e.do(t, "GET", "/api/conversations", token, nil)
	req.Equal(http.StatusOK, w.Code)

	var resp struct {
		Data []models.ConversationSummary `json:"data"`
	}
	req.NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	req.Empty(resp.Data)
}
