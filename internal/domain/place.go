package domain

import (
	"time"

	"github.com/google/uuid"
)

// Place is a chat-scoped saved location (home, work, school) that the chat
// layer offers as a shortcut when asking for a route's origin or destination.
type Place struct {
	ID        uuid.UUID   `json:"id"`
	ChatID    int64       `json:"chat_id"`
	Name      string      `json:"name"`
	Coords    Coordinates `json:"coords"`
	CreatedAt time.Time   `json:"created_at"`
}
