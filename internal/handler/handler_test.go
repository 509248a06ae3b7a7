package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/responderhq/opschat/internal/middleware"
	"github.com/responderhq/opschat/internal/model"
	"github.com/responderhq/opschat/internal/push"
	"github.com/responderhq/opschat/internal/service"
	"github.com/responderhq/opschat/internal/store/memory"
	"github.com/responderhq/opschat/pkg/logger"
)

type recordingSink struct {
	notifications []push.Notification
	tokens        []push.TokenRegistration
	fail          bool
}

func (s *recordingSink) MessageAppended(ctx context.Context, n push.Notification) error {
	if s.fail {
		return errors.New("sink down")
	}
	s.notifications = append(s.notifications, n)
	return nil
}

func (s *recordingSink) RegisterToken(ctx context.Context, reg push.TokenRegistration) error {
	if s.fail {
		return errors.New("sink down")
	}
	s.tokens = append(s.tokens, reg)
	return nil
}

// testAuth injects identity from request headers, standing in for the JWT
// middleware so handler tests don't mint tokens.
func testAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		ctx = context.WithValue(ctx, middleware.UserIDKey, r.Header.Get("X-Test-User"))
		ctx = context.WithValue(ctx, middleware.UserNameKey, r.Header.Get("X-Test-Name"))
		role := model.Role(r.Header.Get("X-Test-Role"))
		if role == "" {
			role = model.RoleMember
		}
		ctx = context.WithValue(ctx, middleware.RoleKey, role)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type env struct {
	router *chi.Mux
	store  *memory.Store
	sink   *recordingSink
	groups *service.GroupService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	log := logger.NewNop()
	st := memory.New()
	sink := &recordingSink{}
	groups := service.NewGroupService(st, log)
	unread := service.NewUnreadTracker(st)
	messages := service.NewMessageService(st, groups, unread, sink, log)
	directory := service.NewDirectory(st, groups, unread)
	ingest := service.NewIngestService(st, groups, sink, log)
	require.NoError(t, groups.ProvisionPredefined(context.Background()))

	conversationHandler := NewConversationHandler(directory, log)
	messageHandler := NewMessageHandler(messages, log)
	groupHandler := NewGroupHandler(groups, log)
	ingestHandler := NewIngestHandler(ingest, log)
	notificationHandler := NewNotificationHandler(sink, log)

	r := chi.NewRouter()
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(testAuth)
		r.Get("/conversations", conversationHandler.List)
		r.Route("/conversations/{key}", func(r chi.Router) {
			r.Get("/messages", messageHandler.List)
			r.Delete("/messages", messageHandler.Clear)
		})
		r.Post("/messages", messageHandler.Send)
		r.Route("/groups", func(r chi.Router) {
			r.Get("/", groupHandler.List)
			r.Post("/", groupHandler.Create)
			r.Post("/{ref}/members", groupHandler.AddMembers)
			r.Delete("/{ref}", groupHandler.Delete)
		})
		r.Post("/notification-token", notificationHandler.RegisterToken)
	})
	r.Route("/ingest/v1", func(r chi.Router) {
		r.Use(middleware.GatewayAuth("gw-key"))
		r.Post("/messages", ingestHandler.Ingest)
	})

	return &env{router: r, store: st, sink: sink, groups: groups}
}

type testRequest struct {
	method  string
	path    string
	user    string
	role    string
	body    any
	headers map[string]string
}

func (e *env) do(t *testing.T, tr testRequest) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if tr.body != nil {
		data, err := json.Marshal(tr.body)
		require.NoError(t, err)
		body = bytes.NewReader(data)
	}
	req := httptest.NewRequest(tr.method, tr.path, body)
	if tr.user != "" {
		req.Header.Set("X-Test-User", tr.user)
		req.Header.Set("X-Test-Name", tr.user)
	}
	if tr.role != "" {
		req.Header.Set("X-Test-Role", tr.role)
	}
	for k, v := range tr.headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	return out
}

func TestSendAndFetchDirectThread(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, testRequest{
		method: http.MethodPost, path: "/api/v1/messages", user: "alice",
		body: model.SendMessageRequest{TargetUserID: "bob", Content: "radio check"},
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	sent := decode[model.SendMessageResponse](t, rec)
	require.NotNil(t, sent.Message)
	assert.Equal(t, "radio check", sent.Message.Content)

	rec = e.do(t, testRequest{
		method: http.MethodGet, path: "/api/v1/conversations/direct.alice.bob/messages", user: "bob",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	listed := decode[model.ListMessagesResponse](t, rec)
	require.Len(t, listed.Messages, 1)
	assert.Equal(t, sent.Message.Sequence, listed.LastSequence)

	// Incremental fetch with nothing new.
	rec = e.do(t, testRequest{
		method: http.MethodGet,
		path:   "/api/v1/conversations/direct.alice.bob/messages?since=1",
		user:   "bob",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	listed = decode[model.ListMessagesResponse](t, rec)
	assert.Empty(t, listed.Messages)
}

func TestSendStatusMapping(t *testing.T) {
	e := newEnv(t)

	// Both targets set.
	rec := e.do(t, testRequest{
		method: http.MethodPost, path: "/api/v1/messages", user: "alice",
		body: model.SendMessageRequest{TargetUserID: "bob", TargetGroup: "g", Content: "x"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Unknown group.
	rec = e.do(t, testRequest{
		method: http.MethodPost, path: "/api/v1/messages", user: "alice",
		body: model.SendMessageRequest{TargetGroup: "nope", Content: "x"},
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Not a member of the target group.
	rec = e.do(t, testRequest{
		method: http.MethodPost, path: "/api/v1/messages", user: "alice",
		body: model.SendMessageRequest{TargetGroup: model.SubtypeBroadcast, Content: "x"},
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Malformed body.
	req := httptest.NewRequest(http.MethodPost, "/api/v1/messages", bytes.NewReader([]byte("{not json")))
	req.Header.Set("X-Test-User", "alice")
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestSendHonorsClientMessageIDHeader(t *testing.T) {
	e := newEnv(t)
	body := model.SendMessageRequest{TargetUserID: "bob", Content: "once"}
	headers := map[string]string{"X-Client-Message-ID": "retry-7"}

	rec := e.do(t, testRequest{method: http.MethodPost, path: "/api/v1/messages", user: "alice", body: body, headers: headers})
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = e.do(t, testRequest{method: http.MethodPost, path: "/api/v1/messages", user: "alice", body: body, headers: headers})
	require.Equal(t, http.StatusCreated, rec.Code)

	listed := e.do(t, testRequest{
		method: http.MethodGet, path: "/api/v1/conversations/direct.alice.bob/messages", user: "alice",
	})
	resp := decode[model.ListMessagesResponse](t, listed)
	assert.Len(t, resp.Messages, 1)
}

func TestListMessagesRejectsBadInput(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, testRequest{
		method: http.MethodGet, path: "/api/v1/conversations/bogus-key/messages", user: "alice",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(t, testRequest{
		method: http.MethodGet, path: "/api/v1/conversations/direct.alice.bob/messages?since=abc", user: "alice",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Non-participant.
	rec = e.do(t, testRequest{
		method: http.MethodGet, path: "/api/v1/conversations/direct.alice.bob/messages", user: "mallory",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestClearConversationEndpoint(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, testRequest{
		method: http.MethodPost, path: "/api/v1/messages", user: "alice",
		body: model.SendMessageRequest{TargetUserID: "bob", Content: "temp"},
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = e.do(t, testRequest{
		method: http.MethodDelete, path: "/api/v1/conversations/direct.alice.bob/messages", user: "bob",
	})
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = e.do(t, testRequest{
		method: http.MethodGet, path: "/api/v1/conversations/direct.alice.bob/messages", user: "bob",
	})
	listed := decode[model.ListMessagesResponse](t, rec)
	assert.Empty(t, listed.Messages)
}

func TestGroupLifecycleEndpoints(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, testRequest{
		method: http.MethodPost, path: "/api/v1/groups", user: "alice",
		body: model.CreateGroupRequest{Name: "night-shift", MemberIDs: []string{"bob"}},
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[model.Group](t, rec)
	assert.True(t, created.HasMember("alice"))

	// Duplicate name conflicts.
	rec = e.do(t, testRequest{
		method: http.MethodPost, path: "/api/v1/groups", user: "carol",
		body: model.CreateGroupRequest{Name: "night-shift", MemberIDs: []string{"dave"}},
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Members see the group in their list.
	rec = e.do(t, testRequest{method: http.MethodGet, path: "/api/v1/groups/", user: "bob"})
	require.Equal(t, http.StatusOK, rec.Code)
	groups := decode[model.ListGroupsResponse](t, rec)
	require.Len(t, groups.Groups, 1)

	// Extend membership.
	rec = e.do(t, testRequest{
		method: http.MethodPost, path: "/api/v1/groups/night-shift/members", user: "bob",
		body: map[string][]string{"member_ids": {"carol"}},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	updated := decode[model.Group](t, rec)
	assert.True(t, updated.HasMember("carol"))

	// Only the creator or an admin deletes.
	rec = e.do(t, testRequest{method: http.MethodDelete, path: "/api/v1/groups/night-shift", user: "bob"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = e.do(t, testRequest{method: http.MethodDelete, path: "/api/v1/groups/night-shift", user: "alice"})
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = e.do(t, testRequest{method: http.MethodDelete, path: "/api/v1/groups/" + created.ID, user: "alice"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPredefinedGroupDeletionDenied(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, testRequest{
		method: http.MethodDelete, path: "/api/v1/groups/broadcast", user: "root", role: "admin",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestDirectoryEndpoint(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, testRequest{
		method: http.MethodPost, path: "/api/v1/messages", user: "alice",
		body: model.SendMessageRequest{TargetUserID: "bob", Content: "hello"},
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = e.do(t, testRequest{method: http.MethodGet, path: "/api/v1/conversations", user: "bob"})
	require.Equal(t, http.StatusOK, rec.Code)
	dir := decode[model.ListConversationsResponse](t, rec)
	require.Len(t, dir.Conversations, 1)
	assert.Equal(t, "alice", dir.Conversations[0].PartnerID)
	assert.Equal(t, 1, dir.Conversations[0].UnreadCount)
}

func TestIngestEndpoint(t *testing.T) {
	e := newEnv(t)
	body := model.IngestRequest{
		TargetGroup: model.SubtypeCallout,
		Source:      model.SourceDispatch,
		SenderName:  "County Dispatch",
		Content:     "MVA on Route 9",
	}

	// Wrong key is rejected before any handler logic runs.
	rec := e.do(t, testRequest{
		method: http.MethodPost, path: "/ingest/v1/messages", body: body,
		headers: map[string]string{"X-Gateway-Key": "wrong"},
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = e.do(t, testRequest{
		method: http.MethodPost, path: "/ingest/v1/messages", body: body,
		headers: map[string]string{"X-Gateway-Key": "gw-key"},
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	resp := decode[model.SendMessageResponse](t, rec)
	require.NotNil(t, resp.Message)
	assert.True(t, resp.Message.IsExternal)
	assert.Nil(t, resp.Message.SenderID)

	// Unknown source.
	bad := body
	bad.Source = "weather"
	rec = e.do(t, testRequest{
		method: http.MethodPost, path: "/ingest/v1/messages", body: bad,
		headers: map[string]string{"X-Gateway-Key": "gw-key"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestNotificationTokenEndpoint(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, testRequest{
		method: http.MethodPost, path: "/api/v1/notification-token", user: "alice",
		body: model.NotificationTokenRequest{Token: "device-abc", DeviceInfo: map[string]string{"os": "android"}},
	})
	assert.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, e.sink.tokens, 1)
	assert.Equal(t, "alice", e.sink.tokens[0].UserID)
	assert.Equal(t, "device-abc", e.sink.tokens[0].Token)

	rec = e.do(t, testRequest{
		method: http.MethodPost, path: "/api/v1/notification-token", user: "alice",
		body: model.NotificationTokenRequest{},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthEndpoints(t *testing.T) {
	h := NewHealthHandler(nil)

	rec := httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.Ready(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	failing := NewHealthHandler(readyFunc(func() error { return errors.New("backend down") }))
	rec = httptest.NewRecorder()
	failing.Ready(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

type readyFunc func() error

func (f readyFunc) Ready() error { return f() }
