package models

import (
	"errors"
	"time"
)

// ErrNotFound is returned by stores when no record exists for a chat
var ErrNotFound = errors.New("record not found")

// GameRecord is the flat, host-storable form of a match
type GameRecord struct {
	ChatID        int64          `bson:"_id,omitempty" json:"chatId,omitempty"`
	CurrentPlayer int            `bson:"currentPlayer" json:"currentPlayer"`
	Status        string         `bson:"status" json:"status"` // "roll" | "buy" | "auction"
	Players       []PlayerRecord `bson:"players" json:"players"`
	BiggestBid    int            `bson:"biggestBid" json:"biggestBid"`
	BidTimeSec    int64          `bson:"bidTimeSec" json:"bidTimeSec"`
	BidderID      int64          `bson:"bidderId" json:"bidderId"`
	UpdatedAt     time.Time      `bson:"updatedAt" json:"updatedAt"`
}

// PlayerRecord is the flat form of a single participant
type PlayerRecord struct {
	UserID    int64       `bson:"userId" json:"userId"`
	Username  string      `bson:"username,omitempty" json:"username,omitempty"`
	Ownership map[int]int `bson:"ownership" json:"ownership"` // tile id -> house count
	Position  int         `bson:"position" json:"position"`
	Money     int         `bson:"money" json:"money"`
	IsJailed  bool        `bson:"isJailed" json:"isJailed"`
	Streak    int         `bson:"streak" json:"streak"`
}

// Seat identifies a player joining a match
type Seat struct {
	UserID   int64  `json:"userId"`
	Username string `json:"username,omitempty"`
}

// EventKind classifies outbox events
type EventKind string

const (
	EventNarration  EventKind = "NARRATION"
	EventSettlement EventKind = "SETTLEMENT"
	EventWarning    EventKind = "WARNING"
	EventLobby      EventKind = "LOBBY"
	EventReset      EventKind = "RESET"
)

// ChatEvent is a message queued for delivery to a chat's front ends
type ChatEvent struct {
	ID        string    `json:"id"`
	ChatID    int64     `json:"chatId"`
	Kind      EventKind `json:"kind"`
	Text      string    `json:"text"`
	CallerID  int64     `json:"callerId,omitempty"`
	Attempts  int       `json:"attempts,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
