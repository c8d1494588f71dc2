package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/kekopoly/monopoly/internal/api/middleware/auth"
	"github.com/kekopoly/monopoly/internal/game/engine"
	"github.com/kekopoly/monopoly/internal/game/manager"
	"github.com/kekopoly/monopoly/internal/game/models"
)

// GameService is the chat command surface served over HTTP
type GameService interface {
	Enter(ctx context.Context, chatID int64, seat models.Seat) (*manager.Reply, error)
	Begin(ctx context.Context, chatID, caller int64) (*manager.Reply, error)
	Roll(ctx context.Context, chatID, caller int64) (*manager.Reply, error)
	Buy(ctx context.Context, chatID, caller int64) (*manager.Reply, error)
	Auction(ctx context.Context, chatID, caller int64) (*manager.Reply, error)
	Bid(ctx context.Context, chatID, caller int64, amount int) (*manager.Reply, error)
	Rent(ctx context.Context, chatID, caller int64) (*manager.Reply, error)
	Build(ctx context.Context, chatID, caller int64, tileID int) (*manager.Reply, error)
	Status(ctx context.Context, chatID, caller int64) (*manager.Reply, error)
	Position(ctx context.Context, chatID, userID int64) (int, error)
	State(ctx context.Context, chatID int64) (models.GameRecord, error)
	Reset(ctx context.Context, chatID, caller int64) (*manager.Reply, error)
}

// GameHandler handles chat command requests
type GameHandler struct {
	games  GameService
	logger *zap.SugaredLogger
}

// NewGameHandler creates a new GameHandler
func NewGameHandler(games GameService, logger *zap.SugaredLogger) *GameHandler {
	return &GameHandler{games: games, logger: logger}
}

// BidRequest represents a bid in a running auction
type BidRequest struct {
	Amount int `json:"amount" validate:"required,gt=0"`
}

// BuildRequest names the street to build on
type BuildRequest struct {
	TileID int `json:"tileId" validate:"gte=0,lt=40"`
}

// PositionResponse is the answer to a position query
type PositionResponse struct {
	UserID   int64 `json:"userId"`
	Position int   `json:"position"`
	OnBoard  bool  `json:"onBoard"`
}

type command func(ctx context.Context, chatID, caller int64) (*manager.Reply, error)

// Enter adds the caller to the chat's lobby
func (h *GameHandler) Enter(c echo.Context) error {
	chatID, caller, err := h.identify(c)
	if err != nil {
		return err
	}
	username, _ := c.Get(auth.ContextUsername).(string)
	reply, err := h.games.Enter(c.Request().Context(), chatID, models.Seat{UserID: caller, Username: username})
	return h.respond(c, reply, err)
}

// Begin starts the match
func (h *GameHandler) Begin(c echo.Context) error { return h.run(c, h.games.Begin) }

// Roll rolls the dice
func (h *GameHandler) Roll(c echo.Context) error { return h.run(c, h.games.Roll) }

// Buy buys the current tile
func (h *GameHandler) Buy(c echo.Context) error { return h.run(c, h.games.Buy) }

// Auction starts an auction
func (h *GameHandler) Auction(c echo.Context) error { return h.run(c, h.games.Auction) }

// Rent claims rent
func (h *GameHandler) Rent(c echo.Context) error { return h.run(c, h.games.Rent) }

// helpText lists the chat commands and the routes that serve them
const helpText = `List of commands
- enter (POST /api/v1/chats/:chatId/enter) to enter a game
- begin (POST .../begin) to start a game with all the players who entered
- help (GET /api/v1/help) to show a list of available commands

In a game
- roll (POST .../roll) to roll the dice
- buy (POST .../buy) to buy current property
- auction (POST .../auction) to put the property for auction
- bid (POST .../bid {"amount": <price>}) to make a bid in the auction
- rent (POST .../rent) to ask for rent payment
- build (POST .../build {"tileId": <tile>}) to build a house
- status (GET .../status) to see game's status
- reset (POST .../reset) to drop the game and start over`

// Help lists the available commands. It needs no game and no token.
func (h *GameHandler) Help(c echo.Context) error {
	return c.JSON(http.StatusOK, &manager.Reply{Narration: engine.Narration{Text: helpText}})
}

// Status describes the match
func (h *GameHandler) Status(c echo.Context) error { return h.run(c, h.games.Status) }

// Reset drops the match and lobby
func (h *GameHandler) Reset(c echo.Context) error { return h.run(c, h.games.Reset) }

// Bid places a bid
func (h *GameHandler) Bid(c echo.Context) error {
	chatID, caller, err := h.identify(c)
	if err != nil {
		return err
	}
	var req BidRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	reply, err := h.games.Bid(c.Request().Context(), chatID, caller, req.Amount)
	return h.respond(c, reply, err)
}

// Build adds a house to a street
func (h *GameHandler) Build(c echo.Context) error {
	chatID, caller, err := h.identify(c)
	if err != nil {
		return err
	}
	var req BuildRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	reply, err := h.games.Build(c.Request().Context(), chatID, caller, req.TileID)
	return h.respond(c, reply, err)
}

// Position reports where a user stands
func (h *GameHandler) Position(c echo.Context) error {
	chatID, _, err := h.identify(c)
	if err != nil {
		return err
	}
	userID, err := strconv.ParseInt(c.Param("userId"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid user ID")
	}

	position, err := h.games.Position(c.Request().Context(), chatID, userID)
	if err != nil {
		return h.fail(err)
	}
	return c.JSON(http.StatusOK, PositionResponse{
		UserID:   userID,
		Position: position,
		OnBoard:  position != engine.OffBoard,
	})
}

// State returns the stored record of the match
func (h *GameHandler) State(c echo.Context) error {
	chatID, _, err := h.identify(c)
	if err != nil {
		return err
	}
	rec, err := h.games.State(c.Request().Context(), chatID)
	if err != nil {
		return h.fail(err)
	}
	return c.JSON(http.StatusOK, rec)
}

func (h *GameHandler) run(c echo.Context, cmd command) error {
	chatID, caller, err := h.identify(c)
	if err != nil {
		return err
	}
	reply, err := cmd(c.Request().Context(), chatID, caller)
	return h.respond(c, reply, err)
}

func (h *GameHandler) identify(c echo.Context) (int64, int64, error) {
	chatID, err := strconv.ParseInt(c.Param("chatId"), 10, 64)
	if err != nil {
		return 0, 0, echo.NewHTTPError(http.StatusBadRequest, "Invalid chat ID")
	}
	caller, ok := c.Get(auth.ContextUserID).(int64)
	if !ok || caller == 0 {
		return 0, 0, echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
	}
	return chatID, caller, nil
}

func (h *GameHandler) respond(c echo.Context, reply *manager.Reply, err error) error {
	if err != nil {
		return h.fail(err)
	}
	return c.JSON(http.StatusOK, reply)
}

func (h *GameHandler) fail(err error) error {
	switch {
	case errors.Is(err, manager.ErrNoGame):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, manager.ErrGameInProgress):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, engine.ErrEmptyRoster):
		return echo.NewHTTPError(http.StatusConflict, "Nobody has entered the game yet")
	}
	h.logger.Errorf("Game command failed: %v", err)
	return echo.NewHTTPError(http.StatusInternalServerError, "Failed to process command")
}

func bindAndValidate(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}
