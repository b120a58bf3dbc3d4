package routes_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/goccy/go-json"
	"github.com/hilthontt/letschat/application/usecases/announce"
	fileUseCase "github.com/hilthontt/letschat/application/usecases/file"
	messageUseCase "github.com/hilthontt/letschat/application/usecases/message"
	presenceUseCase "github.com/hilthontt/letschat/application/usecases/presence"
	roomUseCase "github.com/hilthontt/letschat/application/usecases/room"
	sessionUseCase "github.com/hilthontt/letschat/application/usecases/session"
	userUseCase "github.com/hilthontt/letschat/application/usecases/user"
	"github.com/hilthontt/letschat/domain/model"
	"github.com/hilthontt/letschat/domain/repository"
	"github.com/hilthontt/letschat/infrastructure/broker"
	"github.com/hilthontt/letschat/infrastructure/broker/brokertest"
	"github.com/hilthontt/letschat/infrastructure/cache"
	"github.com/hilthontt/letschat/infrastructure/jobs"
	"github.com/hilthontt/letschat/infrastructure/logger"
	"github.com/hilthontt/letschat/infrastructure/metrics"
	persistence "github.com/hilthontt/letschat/infrastructure/persistence/repository"
	"github.com/hilthontt/letschat/infrastructure/security"
	"github.com/hilthontt/letschat/infrastructure/sqsio"
	"github.com/hilthontt/letschat/presentation/controllers/account"
	"github.com/hilthontt/letschat/presentation/controllers/file"
	"github.com/hilthontt/letschat/presentation/controllers/message"
	"github.com/hilthontt/letschat/presentation/controllers/presence"
	"github.com/hilthontt/letschat/presentation/controllers/room"
	"github.com/hilthontt/letschat/presentation/controllers/sqs"
	usersController "github.com/hilthontt/letschat/presentation/controllers/users"
	"github.com/hilthontt/letschat/presentation/middlewares"
	"github.com/hilthontt/letschat/presentation/routes"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
)

// queues creates and deletes queues on the in-memory broker transport.
type queues struct {
	tr *brokertest.Transport

	mu       sync.Mutex
	cooldown bool
	deleted  []string
}

func (q *queues) CreateQueue(_ context.Context, userID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.cooldown {
		return sqsio.ErrQueueDeletedRecently
	}
	q.tr.AddQueue(userID)
	return nil
}

func (q *queues) DeleteQueue(userID string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.deleted = append(q.deleted, userID)
}

func (q *queues) GetURL(ctx context.Context, userID string) (string, error) {
	return q.tr.GetURL(ctx, userID)
}

// GetTemporaryCredentials encodes the user in the key id so tests can see
// whose queue the credentials were issued for.
func (q *queues) GetTemporaryCredentials(_ context.Context, userID string) (model.TemporaryCredential, error) {
	return model.TemporaryCredential{AccessKeyID: "ASIA-" + userID, SecretAccessKey: "secret", SessionToken: "tok", Region: "us-east-1"}, nil
}

type server struct {
	engine   *gin.Engine
	tr       *brokertest.Transport
	queues   *queues
	broker   *broker.Broker
	presence repository.PresenceRepository
}

func newServer(t *testing.T) *server {
	gin.SetMode(gin.TestMode)
	binding.Validator = new(middlewares.DefaultValidator)

	mini := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mini.Addr()})
	dc := cache.NewDistributedCache(client, "letschat:", 0)
	t.Cleanup(func() {
		dc.Close()
		_ = client.Close()
	})

	tracer := noop.NewTracerProvider().Tracer("test")
	log := logger.NewNop()

	users := persistence.NewUserRepository(dc, tracer)
	rooms := persistence.NewRoomRepository(dc, tracer)
	messages := persistence.NewMessageRepository(dc, tracer)
	files := persistence.NewFileRepository(dc, tracer)

	tr := brokertest.NewTransport()
	b := brokertest.NewBroker(tr)
	q := &queues{tr: tr}

	announcer := announce.NewAnnounceUseCase(b, log)
	presenceUC := presenceUseCase.NewPresenceUseCase(users, b, log)
	presenceRepo := persistence.NewPresenceRepository(dc, tracer)
	sessionUC := sessionUseCase.NewSessionUseCase(users, persistence.NewSessionRepository(dc, tracer), presenceRepo, q, log)
	userUC := userUseCase.NewUserUseCase(users, rooms, announcer, presenceUC, log, 2*time.Minute)
	roomUC := roomUseCase.NewRoomUseCase(rooms, users, announcer, presenceUC, log)
	messageUC := messageUseCase.NewMessageUseCase(messages, rooms, announcer, log)
	fileUC := fileUseCase.NewFileUseCase(files, messages, rooms, announcer, log)

	engine := gin.New()
	public := engine.Group("")
	authed := engine.Group("")
	authed.Use(middlewares.RequireLogin(sessionUC, log))

	noLimit := func(c *gin.Context) { c.Next() }
	routes.AccountRoutes(public, authed, account.NewAccountController(sessionUC, userUC, b), noLimit)
	routes.SqsRoutes(authed, sqs.NewSqsController(sessionUC))
	routes.PresenceRoutes(authed, presence.NewPresenceController(sessionUC))
	routes.RoomRoutes(authed, room.NewRoomController(roomUC, b))
	routes.MessageRoutes(authed, message.NewMessageController(messageUC, b), noLimit)
	routes.FilesRoutes(authed, file.NewFilesController(fileUC, b), noLimit)
	routes.UsersRoutes(authed, usersController.NewUsersController(userUC))

	return &server{engine: engine, tr: tr, queues: q, broker: b, presence: presenceRepo}
}

func (s *server) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set(security.SessionHeader, token)
	}
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)
	return rec
}

func (s *server) login(t *testing.T, username string) (string, *model.User) {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/account/login", "", gin.H{"username": username})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp account.LoginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token, resp.User
}

func TestLoginCreatesQueueAndServesURL(t *testing.T) {
	s := newServer(t)
	token, user := s.login(t, "alice")

	rec := s.do(t, http.MethodGet, "/sqs", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"url":"`+brokertest.URL(user.ID)+`"}`, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/sqs/credentials", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var creds model.TemporaryCredential
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &creds))
	assert.Equal(t, "ASIA-"+user.ID, creds.AccessKeyID)
}

func TestLoginSetsSessionCookie(t *testing.T) {
	s := newServer(t)
	rec := s.do(t, http.MethodPost, "/account/login", "", gin.H{"username": "alice"})
	require.Equal(t, http.StatusOK, rec.Code)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)

	req := httptest.NewRequest(http.MethodGet, "/account", nil)
	req.AddCookie(cookies[0])
	me := httptest.NewRecorder()
	s.engine.ServeHTTP(me, req)
	assert.Equal(t, http.StatusOK, me.Code)
}

func TestLoginDuringCooldownIsDistinguishable(t *testing.T) {
	s := newServer(t)
	s.queues.cooldown = true

	rec := s.do(t, http.MethodPost, "/account/login", "", gin.H{"username": "alice"})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "You must wait 60 seconds after logging out to log in again.")
}

func TestLoginRejectsInvalidUsername(t *testing.T) {
	s := newServer(t)

	rec := s.do(t, http.MethodPost, "/account/login", "", gin.H{"username": "_x"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid username")
}

func TestAuthenticatedRoutesRequireSession(t *testing.T) {
	s := newServer(t)

	for _, path := range []string{"/account", "/sqs", "/sqs/credentials", "/rooms", "/users", "/users/alice"} {
		rec := s.do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
}

func TestLogoutDeletesQueueAndEndsSession(t *testing.T) {
	s := newServer(t)
	token, user := s.login(t, "alice")

	rec := s.do(t, http.MethodPost, "/account/logout", token, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{user.ID}, s.queues.deleted)

	rec = s.do(t, http.MethodGet, "/account", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestJoinRespondsAfterPresenceIsDelivered(t *testing.T) {
	s := newServer(t)
	aliceToken, _ := s.login(t, "alice")
	bobToken, bob := s.login(t, "bob")

	rec := s.do(t, http.MethodPost, "/rooms", aliceToken, gin.H{"name": "General"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created model.RoomView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "general", created.Slug)
	assert.Len(t, s.tr.Events(model.EventRoomsNew), 2)

	rec = s.do(t, http.MethodPut, "/rooms/general/users/me", bobToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	joins := s.tr.Events(model.EventUsersJoin)
	require.Len(t, joins, 2)
	for _, sent := range joins {
		assert.Equal(t, created.ID, sent.Envelope.Room)
		payload := sent.Envelope.Payload.(model.PresenceUser)
		assert.Equal(t, bob.ID, payload.ID)
	}
}

func TestPasswordRoomRejectsWrongPassword(t *testing.T) {
	s := newServer(t)
	aliceToken, _ := s.login(t, "alice")
	bobToken, _ := s.login(t, "bob")

	rec := s.do(t, http.MethodPost, "/rooms", aliceToken, gin.H{"name": "Secret", "password": "hunter2"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = s.do(t, http.MethodPut, "/rooms/secret/users/me", bobToken, gin.H{"password": "nope"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodPut, "/rooms/secret/users/me", bobToken, gin.H{"password": "hunter2"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPostMessageAnnouncesToRoom(t *testing.T) {
	s := newServer(t)
	aliceToken, _ := s.login(t, "alice")
	_, _ = s.login(t, "bob")

	rec := s.do(t, http.MethodPost, "/rooms", aliceToken, gin.H{"name": "General"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = s.do(t, http.MethodPost, "/rooms/general/messages", aliceToken, gin.H{"text": "hello"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Len(t, s.tr.Events(model.EventMessagesNew), 2)

	rec = s.do(t, http.MethodGet, "/rooms/general/messages?limit=10", aliceToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var msgs []model.Message
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &msgs))
	require.Len(t, msgs, 1)
	assert.Equal(t, "hello", msgs[0].Text)
}

func TestPostMessageOutsideRoomIsForbidden(t *testing.T) {
	s := newServer(t)
	aliceToken, _ := s.login(t, "alice")
	bobToken, _ := s.login(t, "bob")

	rec := s.do(t, http.MethodPost, "/rooms", aliceToken, gin.H{"name": "General"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = s.do(t, http.MethodPost, "/rooms/general/messages", bobToken, gin.H{"text": "hi"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestShareFilePostsLink(t *testing.T) {
	s := newServer(t)
	aliceToken, _ := s.login(t, "alice")

	rec := s.do(t, http.MethodPost, "/rooms", aliceToken, gin.H{"name": "General"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = s.do(t, http.MethodPost, "/rooms/general/files", aliceToken, gin.H{
		"name": "cat.png", "type": "image/png", "size": 42, "url": "https://cdn.example.com/cat.png", "post": true,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Len(t, s.tr.Events(model.EventFilesNew), 1)
	assert.Len(t, s.tr.Events(model.EventMessagesNew), 1)

	rec = s.do(t, http.MethodGet, "/rooms/general/files", aliceToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "cat.png")
}

func TestPresenceHeartbeat(t *testing.T) {
	s := newServer(t)
	token, _ := s.login(t, "alice")

	rec := s.do(t, http.MethodPost, "/presence", token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodGet, "/account", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "lastPresent")

	rec = s.do(t, http.MethodDelete, "/presence", token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodGet, "/account", token, nil)
	assert.NotContains(t, rec.Body.String(), "lastPresent")
}

func TestRenameAnnouncesLeaveAndJoin(t *testing.T) {
	s := newServer(t)
	aliceToken, _ := s.login(t, "alice")

	rec := s.do(t, http.MethodPost, "/rooms", aliceToken, gin.H{"name": "General"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = s.do(t, http.MethodPost, "/account/profile", aliceToken, gin.H{"username": "alicia"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Len(t, s.tr.Events(model.EventUsersUpdate), 1)
	require.Len(t, s.tr.Events(model.EventUsersLeave), 1)
	require.Len(t, s.tr.Events(model.EventUsersJoin), 1)
	assert.Equal(t, "alice", s.tr.Events(model.EventUsersLeave)[0].Envelope.Payload.(model.PresenceUser).Username)
	assert.Equal(t, "alicia", s.tr.Events(model.EventUsersJoin)[0].Envelope.Payload.(model.PresenceUser).Username)
}

func TestCredentialsAreIssuedForTheCaller(t *testing.T) {
	s := newServer(t)
	aliceToken, alice := s.login(t, "alice")
	bobToken, bob := s.login(t, "bob")

	for token, user := range map[string]*model.User{aliceToken: alice, bobToken: bob} {
		rec := s.do(t, http.MethodGet, "/sqs/credentials", token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var creds model.TemporaryCredential
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &creds))
		assert.Equal(t, "ASIA-"+user.ID, creds.AccessKeyID)
	}
}

func TestListUsers(t *testing.T) {
	s := newServer(t)
	token, alice := s.login(t, "alice")
	_, bob := s.login(t, "bob")
	_, _ = s.login(t, "carol")

	rec := s.do(t, http.MethodGet, "/users", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var all []model.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &all))
	require.Len(t, all, 3)
	assert.Equal(t, "alice", all[0].Username)

	// Login counts as a heartbeat; bob's is pushed outside the window.
	require.NoError(t, s.presence.Touch(context.Background(), bob.ID, time.Now().Add(-time.Hour)))
	rec = s.do(t, http.MethodDelete, "/presence", token, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodGet, "/users?isActive=true", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var active []model.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &active))
	require.Len(t, active, 1)
	assert.Equal(t, "carol", active[0].Username)
	assert.NotEqual(t, alice.ID, active[0].ID)

	rec = s.do(t, http.MethodGet, "/users?skip=1&take=1", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var paged []model.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &paged))
	require.Len(t, paged, 1)
	assert.Equal(t, "bob", paged[0].Username)
}

func TestGetUserByIDOrUsername(t *testing.T) {
	s := newServer(t)
	token, alice := s.login(t, "alice")

	for _, identifier := range []string{alice.ID, "alice", "Alice"} {
		rec := s.do(t, http.MethodGet, "/users/"+identifier, token, nil)
		require.Equal(t, http.StatusOK, rec.Code, identifier)
		var got model.User
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, alice.ID, got.ID)
	}

	rec := s.do(t, http.MethodGet, "/users/nobody", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHeartbeatAfterReapRestoresDelivery(t *testing.T) {
	s := newServer(t)
	token, alice := s.login(t, "alice")
	ctx := context.Background()

	// A negative window makes every heartbeat stale.
	reaper := jobs.NewQueueReaperJob(s.presence, s.tr, metrics.NewNopManager(), logger.NewNop(), time.Minute, -time.Minute)
	require.Equal(t, 1, reaper.RunOnce(ctx))

	require.True(t, s.broker.Wait(ctx, s.broker.Queue(alice.ID).Emit(ctx, model.EventUsersUpdate, alice)))
	assert.Empty(t, s.tr.Events(model.EventUsersUpdate))

	rec := s.do(t, http.MethodPost, "/presence", token, nil)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	require.True(t, s.broker.Wait(ctx, s.broker.Queue(alice.ID).Emit(ctx, model.EventUsersUpdate, alice)))
	sent := s.tr.Events(model.EventUsersUpdate)
	require.Len(t, sent, 1)
	assert.Equal(t, brokertest.URL(alice.ID), sent[0].QueueURL)
}

func TestHeartbeatDuringQueueCooldown(t *testing.T) {
	s := newServer(t)
	token, alice := s.login(t, "alice")
	require.NoError(t, s.presence.Clear(context.Background(), alice.ID))
	s.queues.mu.Lock()
	s.queues.cooldown = true
	s.queues.mu.Unlock()

	rec := s.do(t, http.MethodPost, "/presence", token, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "queue_cooldown")
}
