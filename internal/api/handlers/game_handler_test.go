package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kekopoly/monopoly/internal/api/middleware/auth"
	"github.com/kekopoly/monopoly/internal/game/engine"
	"github.com/kekopoly/monopoly/internal/game/manager"
	"github.com/kekopoly/monopoly/internal/game/models"
)

type MockGameService struct {
	mock.Mock
}

func (m *MockGameService) reply(args mock.Arguments) (*manager.Reply, error) {
	reply, _ := args.Get(0).(*manager.Reply)
	return reply, args.Error(1)
}

func (m *MockGameService) Enter(ctx context.Context, chatID int64, seat models.Seat) (*manager.Reply, error) {
	return m.reply(m.Called(ctx, chatID, seat))
}

func (m *MockGameService) Begin(ctx context.Context, chatID, caller int64) (*manager.Reply, error) {
	return m.reply(m.Called(ctx, chatID, caller))
}

func (m *MockGameService) Roll(ctx context.Context, chatID, caller int64) (*manager.Reply, error) {
	return m.reply(m.Called(ctx, chatID, caller))
}

func (m *MockGameService) Buy(ctx context.Context, chatID, caller int64) (*manager.Reply, error) {
	return m.reply(m.Called(ctx, chatID, caller))
}

func (m *MockGameService) Auction(ctx context.Context, chatID, caller int64) (*manager.Reply, error) {
	return m.reply(m.Called(ctx, chatID, caller))
}

func (m *MockGameService) Bid(ctx context.Context, chatID, caller int64, amount int) (*manager.Reply, error) {
	return m.reply(m.Called(ctx, chatID, caller, amount))
}

func (m *MockGameService) Rent(ctx context.Context, chatID, caller int64) (*manager.Reply, error) {
	return m.reply(m.Called(ctx, chatID, caller))
}

func (m *MockGameService) Build(ctx context.Context, chatID, caller int64, tileID int) (*manager.Reply, error) {
	return m.reply(m.Called(ctx, chatID, caller, tileID))
}

func (m *MockGameService) Status(ctx context.Context, chatID, caller int64) (*manager.Reply, error) {
	return m.reply(m.Called(ctx, chatID, caller))
}

func (m *MockGameService) Position(ctx context.Context, chatID, userID int64) (int, error) {
	args := m.Called(ctx, chatID, userID)
	return args.Int(0), args.Error(1)
}

func (m *MockGameService) State(ctx context.Context, chatID int64) (models.GameRecord, error) {
	args := m.Called(ctx, chatID)
	return args.Get(0).(models.GameRecord), args.Error(1)
}

func (m *MockGameService) Reset(ctx context.Context, chatID, caller int64) (*manager.Reply, error) {
	return m.reply(m.Called(ctx, chatID, caller))
}

type testValidator struct {
	validator *validator.Validate
}

func (v *testValidator) Validate(i interface{}) error {
	return v.validator.Struct(i)
}

// call runs a handler with the caller identity the JWT middleware would set
func call(t *testing.T, fn echo.HandlerFunc, method, body string, caller int64, params ...string) (*httptest.ResponseRecorder, error) {
	t.Helper()
	e := echo.New()
	e.Validator = &testValidator{validator: validator.New()}

	req := httptest.NewRequest(method, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var names, values []string
	for i := 0; i+1 < len(params); i += 2 {
		names = append(names, params[i])
		values = append(values, params[i+1])
	}
	c.SetParamNames(names...)
	c.SetParamValues(values...)
	if caller != 0 {
		c.Set(auth.ContextUserID, caller)
		c.Set(auth.ContextUsername, "alice")
	}
	return rec, fn(c)
}

func httpCode(t *testing.T, err error) int {
	t.Helper()
	var httpErr *echo.HTTPError
	require.ErrorAs(t, err, &httpErr)
	return httpErr.Code
}

func TestRollReturnsNarration(t *testing.T) {
	svc := new(MockGameService)
	h := NewGameHandler(svc, zap.NewNop().Sugar())
	svc.On("Roll", mock.Anything, int64(-5), int64(100)).Return(&manager.Reply{
		Narration: engine.Narration{Text: "alice has rolled 2 and 3, now on Kings Cross Station."},
		Result:    &engine.RollResult{Position: 5, Money: 1500, MustBuy: true},
	}, nil)

	rec, err := call(t, h.Roll, http.MethodPost, "", 100, "chatId", "-5")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	narration := body["narration"].(map[string]interface{})
	assert.Contains(t, narration["text"], "Kings Cross")
	result := body["result"].(map[string]interface{})
	assert.Equal(t, float64(5), result["position"])
	svc.AssertExpectations(t)
}

func TestEnterUsesTokenIdentity(t *testing.T) {
	svc := new(MockGameService)
	h := NewGameHandler(svc, zap.NewNop().Sugar())
	svc.On("Enter", mock.Anything, int64(9), models.Seat{UserID: 100, Username: "alice"}).
		Return(&manager.Reply{Narration: engine.Narration{Text: "You have entered a game"}}, nil)

	rec, err := call(t, h.Enter, http.MethodPost, "", 100, "chatId", "9")
	require.NoError(t, err)
	assert.Contains(t, rec.Body.String(), "You have entered a game")
	svc.AssertExpectations(t)
}

func TestBidValidation(t *testing.T) {
	svc := new(MockGameService)
	h := NewGameHandler(svc, zap.NewNop().Sugar())
	svc.On("Bid", mock.Anything, int64(9), int64(100), 75).
		Return(&manager.Reply{Narration: engine.Narration{Text: "Biggest bid 75"}}, nil)

	rec, err := call(t, h.Bid, http.MethodPost, `{"amount":75}`, 100, "chatId", "9")
	require.NoError(t, err)
	assert.Contains(t, rec.Body.String(), "Biggest bid 75")

	_, err = call(t, h.Bid, http.MethodPost, `{"amount":0}`, 100, "chatId", "9")
	assert.Equal(t, http.StatusBadRequest, httpCode(t, err))
	_, err = call(t, h.Bid, http.MethodPost, `{"amount":`, 100, "chatId", "9")
	assert.Equal(t, http.StatusBadRequest, httpCode(t, err))
	svc.AssertNumberOfCalls(t, "Bid", 1)
}

func TestBuildValidation(t *testing.T) {
	svc := new(MockGameService)
	h := NewGameHandler(svc, zap.NewNop().Sugar())
	svc.On("Build", mock.Anything, int64(9), int64(100), 39).
		Return(&manager.Reply{Narration: engine.Narration{Text: "Built a house on Mayfair, 1 in total. 900 in the bank"}}, nil)

	_, err := call(t, h.Build, http.MethodPost, `{"tileId":39}`, 100, "chatId", "9")
	require.NoError(t, err)

	_, err = call(t, h.Build, http.MethodPost, `{"tileId":40}`, 100, "chatId", "9")
	assert.Equal(t, http.StatusBadRequest, httpCode(t, err))
	svc.AssertNumberOfCalls(t, "Build", 1)
}

func TestErrorMapping(t *testing.T) {
	cases := map[string]struct {
		err  error
		code int
	}{
		"no game":     {manager.ErrNoGame, http.StatusNotFound},
		"in progress": {manager.ErrGameInProgress, http.StatusConflict},
		"empty lobby": {engine.ErrEmptyRoster, http.StatusConflict},
		"store down":  {errors.New("redis down"), http.StatusInternalServerError},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			svc := new(MockGameService)
			h := NewGameHandler(svc, zap.NewNop().Sugar())
			svc.On("Begin", mock.Anything, int64(9), int64(100)).Return(nil, tc.err)

			_, err := call(t, h.Begin, http.MethodPost, "", 100, "chatId", "9")
			assert.Equal(t, tc.code, httpCode(t, err))
		})
	}
}

func TestRequestIdentity(t *testing.T) {
	svc := new(MockGameService)
	h := NewGameHandler(svc, zap.NewNop().Sugar())

	_, err := call(t, h.Roll, http.MethodPost, "", 100, "chatId", "abc")
	assert.Equal(t, http.StatusBadRequest, httpCode(t, err))

	_, err = call(t, h.Roll, http.MethodPost, "", 0, "chatId", "9")
	assert.Equal(t, http.StatusUnauthorized, httpCode(t, err))
	svc.AssertNotCalled(t, "Roll", mock.Anything, mock.Anything, mock.Anything)
}

func TestPosition(t *testing.T) {
	svc := new(MockGameService)
	h := NewGameHandler(svc, zap.NewNop().Sugar())
	svc.On("Position", mock.Anything, int64(9), int64(200)).Return(12, nil)
	svc.On("Position", mock.Anything, int64(9), int64(300)).Return(engine.OffBoard, nil)

	rec, err := call(t, h.Position, http.MethodGet, "", 100, "chatId", "9", "userId", "200")
	require.NoError(t, err)
	assert.JSONEq(t, `{"userId":200,"position":12,"onBoard":true}`, rec.Body.String())

	rec, err = call(t, h.Position, http.MethodGet, "", 100, "chatId", "9", "userId", "300")
	require.NoError(t, err)
	assert.JSONEq(t, `{"userId":300,"position":101,"onBoard":false}`, rec.Body.String())

	_, err = call(t, h.Position, http.MethodGet, "", 100, "chatId", "9", "userId", "x")
	assert.Equal(t, http.StatusBadRequest, httpCode(t, err))
}

func TestState(t *testing.T) {
	svc := new(MockGameService)
	h := NewGameHandler(svc, zap.NewNop().Sugar())
	svc.On("State", mock.Anything, int64(9)).Return(models.GameRecord{ChatID: 9, Status: "auction", BiggestBid: 40}, nil)

	rec, err := call(t, h.State, http.MethodGet, "", 100, "chatId", "9")
	require.NoError(t, err)

	var got models.GameRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "auction", got.Status)
	assert.Equal(t, 40, got.BiggestBid)
}
