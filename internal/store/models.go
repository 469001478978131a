package store

import "time"

const (
	SenderUser = "user"
	SenderBot  = "bot"
)

type Message struct {
	Text   string `json:"text"`
	Sender string `json:"sender"` // "user" or "bot"
}

type Chat struct {
	ID        int64     `json:"id"`
	Username  string    `json:"-"` // owner, not exposed in JSON responses
	Mode      string    `json:"mode"`
	Title     string    `json:"title"`
	Messages  []Message `json:"msgs"`
	CreatedAt time.Time `json:"created_at"`
}
