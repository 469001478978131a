package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/mattn/go-sqlite3"
)

var (
	ErrDuplicateUser = errors.New("user already exists")
	ErrUserNotFound  = errors.New("user not found")
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dataSourceName string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err = store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS users (
        username TEXT PRIMARY KEY,
        password TEXT NOT NULL
    );

    CREATE TABLE IF NOT EXISTS chats (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        username TEXT NOT NULL,
        mode TEXT NOT NULL DEFAULT 'general',
        title TEXT NOT NULL DEFAULT '',
        messages TEXT NOT NULL DEFAULT '[]',
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
        FOREIGN KEY (username) REFERENCES users (username)
    );
    `
	_, err := s.db.Exec(schema)
	return err
}

// User methods

func (s *SQLiteStore) GetUserHash(username string) (string, error) {
	var hash string
	err := s.db.QueryRow("SELECT password FROM users WHERE username = ?", username).Scan(&hash)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", ErrUserNotFound
		}
		return "", fmt.Errorf("failed to query user: %w", err)
	}
	return hash, nil
}

func (s *SQLiteStore) CreateUser(username, passwordHash string) error {
	_, err := s.db.Exec("INSERT INTO users (username, password) VALUES (?, ?)", username, passwordHash)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
			return ErrDuplicateUser
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// Chat methods

func (s *SQLiteStore) ListChats(username string) ([]Chat, error) {
	rows, err := s.db.Query(
		"SELECT id, username, mode, title, messages, created_at FROM chats WHERE username = ? ORDER BY created_at ASC, id ASC",
		username,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query chats: %w", err)
	}
	defer rows.Close()

	var chats []Chat
	for rows.Next() {
		var chat Chat
		var messagesJSON string
		if err := rows.Scan(&chat.ID, &chat.Username, &chat.Mode, &chat.Title, &messagesJSON, &chat.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan chat row: %w", err)
		}
		chat.Messages = decodeMessages(chat.ID, messagesJSON)
		chats = append(chats, chat)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate chat rows: %w", err)
	}
	return chats, nil
}

// decodeMessages tolerates corrupt stored JSON: a row that cannot be parsed
// yields an empty message list instead of failing the whole read.
func decodeMessages(chatID int64, messagesJSON string) []Message {
	messages := []Message{}
	if messagesJSON == "" {
		return messages
	}
	if err := json.Unmarshal([]byte(messagesJSON), &messages); err != nil {
		log.Printf("Warning: corrupt messages for chat %d: %v. Returning empty list.", chatID, err)
		return []Message{}
	}
	if messages == nil {
		messages = []Message{}
	}
	return messages
}

func (s *SQLiteStore) GetChatTitle(id int64, username string) (string, bool, error) {
	var title string
	err := s.db.QueryRow("SELECT title FROM chats WHERE id = ? AND username = ?", id, username).Scan(&title)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to query chat title: %w", err)
	}
	return title, true, nil
}

// UpsertChat inserts a new chat when id is zero and returns the assigned id.
// A non-zero id updates only the row matching (id, username); an id owned by
// another user is a silent no-op and never creates a new row.
func (s *SQLiteStore) UpsertChat(id int64, username, mode string, messages []Message, title string) (int64, error) {
	messagesJSON, err := encodeMessages(messages)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal messages: %w", err)
	}

	if id == 0 {
		res, err := s.db.Exec(
			"INSERT INTO chats (username, mode, title, messages, created_at) VALUES (?, ?, ?, ?, ?)",
			username, mode, title, messagesJSON, time.Now(),
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert chat: %w", err)
		}
		newID, err := res.LastInsertId()
		if err != nil {
			return 0, fmt.Errorf("failed to get chat id: %w", err)
		}
		return newID, nil
	}

	_, err = s.db.Exec(
		"UPDATE chats SET mode = ?, messages = ?, title = ? WHERE id = ? AND username = ?",
		mode, messagesJSON, title, id, username,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to update chat: %w", err)
	}
	return id, nil
}

func (s *SQLiteStore) UpdateTitle(id int64, username, title string) error {
	_, err := s.db.Exec("UPDATE chats SET title = ? WHERE id = ? AND username = ?", title, id, username)
	if err != nil {
		return fmt.Errorf("failed to update chat title: %w", err)
	}
	return nil
}

func encodeMessages(messages []Message) (string, error) {
	if messages == nil {
		messages = []Message{}
	}
	b, err := json.Marshal(messages)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
