// Package storage persists chats, transcripts, reviews, scenarios and user
// preferences in a single sqlite database.
package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/HolkerDev/rozmova-server/internal/billing"
	"github.com/HolkerDev/rozmova-server/internal/chat"
	"github.com/HolkerDev/rozmova-server/internal/review"
	"github.com/HolkerDev/rozmova-server/internal/scenario"
	"github.com/HolkerDev/rozmova-server/internal/transcript"
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if strings.TrimSpace(dbPath) == "" {
		dbPath = filepath.Join("data", "rozmova.db")
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db}
	if err := store.init(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) init() error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("apply pragma %q: %w", p, err)
		}
	}

	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS chats (
			id TEXT PRIMARY KEY,
			scenario_id TEXT NOT NULL,
			status TEXT NOT NULL,
			created_at TEXT NOT NULL,
			archived_at TEXT
		);
	`); err != nil {
		return fmt.Errorf("create chats table: %w", err)
	}

	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS messages (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			chat_id TEXT NOT NULL,
			author TEXT NOT NULL,
			content TEXT NOT NULL,
			audio_ref TEXT NOT NULL DEFAULT '',
			audio_duration REAL NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			FOREIGN KEY(chat_id) REFERENCES chats(id) ON DELETE CASCADE
		);
	`); err != nil {
		return fmt.Errorf("create messages table: %w", err)
	}

	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS reviews (
			id TEXT PRIMARY KEY,
			chat_id TEXT NOT NULL UNIQUE,
			task_completed INTEGER NOT NULL,
			rating INTEGER NOT NULL,
			met_requirements TEXT NOT NULL DEFAULT '[]',
			missed_requirements TEXT NOT NULL DEFAULT '[]',
			mistakes TEXT NOT NULL DEFAULT '[]',
			topics_to_review TEXT NOT NULL DEFAULT '[]',
			vocabulary_to_learn TEXT NOT NULL DEFAULT '[]',
			created_at TEXT NOT NULL,
			FOREIGN KEY(chat_id) REFERENCES chats(id) ON DELETE CASCADE
		);
	`); err != nil {
		return fmt.Errorf("create reviews table: %w", err)
	}

	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS scenarios (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			description TEXT NOT NULL,
			user_role TEXT NOT NULL DEFAULT '',
			bot_role TEXT NOT NULL DEFAULT '',
			instructions TEXT NOT NULL DEFAULT '[]',
			difficulty TEXT NOT NULL,
			type TEXT NOT NULL,
			created_at TEXT NOT NULL
		);
	`); err != nil {
		return fmt.Errorf("create scenarios table: %w", err)
	}

	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
	`); err != nil {
		return fmt.Errorf("create settings table: %w", err)
	}

	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS subscription (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			is_subscribed INTEGER NOT NULL,
			product_id TEXT NOT NULL DEFAULT '',
			purchase_token TEXT NOT NULL DEFAULT '',
			auto_renewing INTEGER NOT NULL DEFAULT 0,
			expires_at TEXT
		);
	`); err != nil {
		return fmt.Errorf("create subscription table: %w", err)
	}

	if _, err := s.db.Exec("CREATE INDEX IF NOT EXISTS idx_chats_created_at ON chats(created_at)"); err != nil {
		return fmt.Errorf("create chats index: %w", err)
	}
	if _, err := s.db.Exec("CREATE INDEX IF NOT EXISTS idx_messages_chat_id ON messages(chat_id, created_at)"); err != nil {
		return fmt.Errorf("create messages index: %w", err)
	}

	return nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

func (s *SQLiteStore) CreateChat(c chat.Chat) error {
	if strings.TrimSpace(c.ID) == "" {
		return errors.New("chat id is required")
	}

	_, err := s.db.Exec(
		`INSERT INTO chats(id, scenario_id, status, created_at) VALUES(?, ?, ?, ?)`,
		c.ID,
		c.ScenarioID,
		string(c.Status),
		c.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("create chat %s: %w", c.ID, err)
	}

	for _, msg := range c.Transcript {
		if err := s.AppendMessage(c.ID, msg); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) GetChat(id string) (chat.Chat, error) {
	row := s.db.QueryRow(
		`SELECT id, scenario_id, status, created_at FROM chats WHERE id = ?`,
		id,
	)

	c, err := scanChat(row)
	if err != nil {
		return chat.Chat{}, fmt.Errorf("query chat %s: %w", id, err)
	}

	tr, err := s.getTranscript(id)
	if err != nil {
		return chat.Chat{}, err
	}
	c.Transcript = tr

	return c, nil
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func insertMessage(e execer, chatID string, msg transcript.Message) error {
	_, err := e.Exec(
		`INSERT INTO messages(id, chat_id, author, content, audio_ref, audio_duration, created_at) VALUES(?, ?, ?, ?, ?, ?, ?)`,
		msg.ID,
		chatID,
		string(msg.Author),
		msg.Content,
		msg.AudioRef,
		msg.AudioDuration,
		msg.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("append message for chat %s: %w", chatID, err)
	}
	return nil
}

// AppendMessage stores one transcript entry. Messages within a chat are
// ordered by created_at with the insertion sequence as tiebreaker, so two
// messages persisted in the same instant keep their append order.
func (s *SQLiteStore) AppendMessage(chatID string, msg transcript.Message) error {
	return insertMessage(s.db, chatID, msg)
}

// AppendExchange stores a user turn and the bot reply in one transaction. A
// failure on either insert rolls back both, so the transcript never holds a
// user message without its reply.
func (s *SQLiteStore) AppendExchange(chatID string, userMsg, botMsg transcript.Message) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin exchange for chat %s: %w", chatID, err)
	}

	for _, msg := range []transcript.Message{userMsg, botMsg} {
		if err := insertMessage(tx, chatID, msg); err != nil {
			_ = tx.Rollback()
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit exchange for chat %s: %w", chatID, err)
	}
	return nil
}

func (s *SQLiteStore) SetChatStatus(chatID string, status chat.Status) error {
	res, err := s.db.Exec(
		`UPDATE chats SET status = ? WHERE id = ?`,
		string(status),
		chatID,
	)
	if err != nil {
		return fmt.Errorf("set status for chat %s: %w", chatID, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set status rows affected: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *SQLiteStore) ArchiveChat(id string) error {
	res, err := s.db.Exec(
		`UPDATE chats SET status = ?, archived_at = ? WHERE id = ?`,
		string(chat.StatusArchived),
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
	)
	if err != nil {
		return fmt.Errorf("archive chat %s: %w", id, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("archive chat rows affected: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *SQLiteStore) DeleteChat(id string) error {
	res, err := s.db.Exec(`DELETE FROM chats WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete chat %s: %w", id, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete chat rows affected: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Chats lists non-archived chats newest first, transcripts included.
func (s *SQLiteStore) Chats() ([]chat.Chat, error) {
	rows, err := s.db.Query(
		`SELECT id, scenario_id, status, created_at
		 FROM chats
		 WHERE status != ?
		 ORDER BY created_at DESC, id DESC`,
		string(chat.StatusArchived),
	)
	if err != nil {
		return nil, fmt.Errorf("query chats: %w", err)
	}
	defer func() { _ = rows.Close() }()

	chats := make([]chat.Chat, 0, 16)
	for rows.Next() {
		c, err := scanChat(rows)
		if err != nil {
			return nil, fmt.Errorf("scan chat: %w", err)
		}
		chats = append(chats, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chat rows: %w", err)
	}

	for i := range chats {
		tr, err := s.getTranscript(chats[i].ID)
		if err != nil {
			return nil, err
		}
		chats[i].Transcript = tr
	}

	return chats, nil
}

// LatestChat returns the most recent non-archived chat, sql.ErrNoRows when
// none exists.
func (s *SQLiteStore) LatestChat() (chat.Chat, error) {
	row := s.db.QueryRow(
		`SELECT id, scenario_id, status, created_at
		 FROM chats
		 WHERE status != ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT 1`,
		string(chat.StatusArchived),
	)

	c, err := scanChat(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return chat.Chat{}, sql.ErrNoRows
		}
		return chat.Chat{}, fmt.Errorf("query latest chat: %w", err)
	}

	tr, err := s.getTranscript(c.ID)
	if err != nil {
		return chat.Chat{}, err
	}
	c.Transcript = tr

	return c, nil
}

func (s *SQLiteStore) getTranscript(chatID string) (transcript.Transcript, error) {
	rows, err := s.db.Query(
		`SELECT id, author, content, audio_ref, audio_duration, created_at
		 FROM messages
		 WHERE chat_id = ?
		 ORDER BY created_at ASC, seq ASC`,
		chatID,
	)
	if err != nil {
		return nil, fmt.Errorf("query messages for chat %s: %w", chatID, err)
	}
	defer func() { _ = rows.Close() }()

	tr := make(transcript.Transcript, 0, 32)
	for rows.Next() {
		var msg transcript.Message
		var author, createdAt string
		if err := rows.Scan(&msg.ID, &author, &msg.Content, &msg.AudioRef, &msg.AudioDuration, &createdAt); err != nil {
			return nil, fmt.Errorf("scan message for chat %s: %w", chatID, err)
		}
		msg.Author = transcript.Author(author)

		parsed, err := time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parse message created_at for chat %s: %w", chatID, err)
		}
		msg.CreatedAt = parsed

		tr = append(tr, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate message rows for chat %s: %w", chatID, err)
	}

	return tr, nil
}

// SaveReview stores the review for a chat, replacing any earlier one. The
// replace matters for a finish that failed after the review landed: the
// retry writes a fresh review instead of tripping over the stale row.
func (s *SQLiteStore) SaveReview(r review.Result) error {
	met, err := marshalList(r.MetRequirements)
	if err != nil {
		return err
	}
	missed, err := marshalList(r.MissedRequirements)
	if err != nil {
		return err
	}
	mistakes, err := json.Marshal(r.Mistakes)
	if err != nil {
		return fmt.Errorf("marshal mistakes: %w", err)
	}
	topics, err := marshalList(r.TopicsToReview)
	if err != nil {
		return err
	}
	vocabulary, err := marshalList(r.VocabularyToLearn)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(
		`INSERT INTO reviews(id, chat_id, task_completed, rating, met_requirements, missed_requirements, mistakes, topics_to_review, vocabulary_to_learn, created_at)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(chat_id) DO UPDATE SET
			id = excluded.id,
			task_completed = excluded.task_completed,
			rating = excluded.rating,
			met_requirements = excluded.met_requirements,
			missed_requirements = excluded.missed_requirements,
			mistakes = excluded.mistakes,
			topics_to_review = excluded.topics_to_review,
			vocabulary_to_learn = excluded.vocabulary_to_learn,
			created_at = excluded.created_at`,
		r.ID,
		r.ChatID,
		boolToInt(r.TaskCompleted),
		r.Rating,
		string(met),
		string(missed),
		string(mistakes),
		string(topics),
		string(vocabulary),
		r.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save review for chat %s: %w", r.ChatID, err)
	}
	return nil
}

func (s *SQLiteStore) GetReview(id string) (review.Result, error) {
	row := s.db.QueryRow(
		`SELECT id, chat_id, task_completed, rating, met_requirements, missed_requirements, mistakes, topics_to_review, vocabulary_to_learn, created_at
		 FROM reviews WHERE id = ?`,
		id,
	)
	r, err := scanReview(row)
	if err != nil {
		return review.Result{}, fmt.Errorf("query review %s: %w", id, err)
	}
	return r, nil
}

func (s *SQLiteStore) GetReviewByChat(chatID string) (review.Result, error) {
	row := s.db.QueryRow(
		`SELECT id, chat_id, task_completed, rating, met_requirements, missed_requirements, mistakes, topics_to_review, vocabulary_to_learn, created_at
		 FROM reviews WHERE chat_id = ?`,
		chatID,
	)
	r, err := scanReview(row)
	if err != nil {
		return review.Result{}, fmt.Errorf("query review for chat %s: %w", chatID, err)
	}
	return r, nil
}

func (s *SQLiteStore) CreateScenario(sc scenario.Scenario) error {
	if strings.TrimSpace(sc.ID) == "" {
		return errors.New("scenario id is required")
	}

	instructions, err := marshalList(sc.Instructions)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(
		`INSERT INTO scenarios(id, title, description, user_role, bot_role, instructions, difficulty, type, created_at)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sc.ID,
		sc.Title,
		sc.Description,
		sc.UserRole,
		sc.BotRole,
		string(instructions),
		string(sc.Difficulty),
		string(sc.Type),
		sc.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("create scenario %s: %w", sc.ID, err)
	}
	return nil
}

func (s *SQLiteStore) GetScenario(id string) (scenario.Scenario, error) {
	row := s.db.QueryRow(
		`SELECT id, title, description, user_role, bot_role, instructions, difficulty, type, created_at
		 FROM scenarios WHERE id = ?`,
		id,
	)
	sc, err := scanScenario(row)
	if err != nil {
		return scenario.Scenario{}, fmt.Errorf("query scenario %s: %w", id, err)
	}
	return sc, nil
}

// Scenarios lists scenarios matching the filter, newest first.
func (s *SQLiteStore) Scenarios(f scenario.Filter) ([]scenario.Scenario, error) {
	query := `SELECT id, title, description, user_role, bot_role, instructions, difficulty, type, created_at FROM scenarios`
	var conds []string
	var args []any
	if f.Type != "" {
		conds = append(conds, "type = ?")
		args = append(args, string(f.Type))
	}
	if f.Difficulty != "" {
		conds = append(conds, "difficulty = ?")
		args = append(args, string(f.Difficulty))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query scenarios: %w", err)
	}
	defer func() { _ = rows.Close() }()

	scenarios := make([]scenario.Scenario, 0, 16)
	for rows.Next() {
		sc, err := scanScenario(rows)
		if err != nil {
			return nil, fmt.Errorf("scan scenario: %w", err)
		}
		scenarios = append(scenarios, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scenario rows: %w", err)
	}

	return scenarios, nil
}

func (s *SQLiteStore) GetSetting(key string) (string, error) {
	row := s.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key)

	var value string
	if err := row.Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", sql.ErrNoRows
		}
		return "", fmt.Errorf("query setting %s: %w", key, err)
	}
	return value, nil
}

func (s *SQLiteStore) SetSetting(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO settings(key, value) VALUES(?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key,
		value,
	)
	if err != nil {
		return fmt.Errorf("set setting %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) SaveSubscription(status billing.Status) error {
	var expiresAt sql.NullString
	if status.ExpiresAt != nil {
		expiresAt = sql.NullString{String: status.ExpiresAt.UTC().Format(time.RFC3339Nano), Valid: true}
	}

	_, err := s.db.Exec(
		`INSERT INTO subscription(id, is_subscribed, product_id, purchase_token, auto_renewing, expires_at)
		 VALUES(1, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			is_subscribed = excluded.is_subscribed,
			product_id = excluded.product_id,
			purchase_token = excluded.purchase_token,
			auto_renewing = excluded.auto_renewing,
			expires_at = excluded.expires_at`,
		boolToInt(status.IsSubscribed),
		status.ProductID,
		status.PurchaseToken,
		boolToInt(status.AutoRenewing),
		expiresAt,
	)
	if err != nil {
		return fmt.Errorf("save subscription: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetSubscription() (billing.Status, error) {
	row := s.db.QueryRow(
		`SELECT is_subscribed, product_id, purchase_token, auto_renewing, expires_at FROM subscription WHERE id = 1`,
	)

	var status billing.Status
	var subscribed, renewing int
	var expiresAt sql.NullString
	if err := row.Scan(&subscribed, &status.ProductID, &status.PurchaseToken, &renewing, &expiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return billing.Status{}, sql.ErrNoRows
		}
		return billing.Status{}, fmt.Errorf("query subscription: %w", err)
	}
	status.IsSubscribed = subscribed != 0
	status.AutoRenewing = renewing != 0

	if expiresAt.Valid {
		parsed, err := time.Parse(time.RFC3339Nano, expiresAt.String)
		if err != nil {
			return billing.Status{}, fmt.Errorf("parse subscription expires_at: %w", err)
		}
		status.ExpiresAt = &parsed
	}

	return status, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanChat(row rowScanner) (chat.Chat, error) {
	var c chat.Chat
	var status, createdAt string
	if err := row.Scan(&c.ID, &c.ScenarioID, &status, &createdAt); err != nil {
		return chat.Chat{}, err
	}
	c.Status = chat.Status(status)

	parsed, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return chat.Chat{}, fmt.Errorf("parse chat created_at: %w", err)
	}
	c.CreatedAt = parsed

	return c, nil
}

func scanReview(row rowScanner) (review.Result, error) {
	var r review.Result
	var completed int
	var met, missed, mistakes, topics, vocabulary, createdAt string
	if err := row.Scan(&r.ID, &r.ChatID, &completed, &r.Rating, &met, &missed, &mistakes, &topics, &vocabulary, &createdAt); err != nil {
		return review.Result{}, err
	}
	r.TaskCompleted = completed != 0

	if err := unmarshalList(met, &r.MetRequirements); err != nil {
		return review.Result{}, err
	}
	if err := unmarshalList(missed, &r.MissedRequirements); err != nil {
		return review.Result{}, err
	}
	if err := json.Unmarshal([]byte(mistakes), &r.Mistakes); err != nil {
		return review.Result{}, fmt.Errorf("unmarshal mistakes: %w", err)
	}
	if err := unmarshalList(topics, &r.TopicsToReview); err != nil {
		return review.Result{}, err
	}
	if err := unmarshalList(vocabulary, &r.VocabularyToLearn); err != nil {
		return review.Result{}, err
	}

	parsed, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return review.Result{}, fmt.Errorf("parse review created_at: %w", err)
	}
	r.CreatedAt = parsed

	return r, nil
}

func scanScenario(row rowScanner) (scenario.Scenario, error) {
	var sc scenario.Scenario
	var instructions, difficulty, typ, createdAt string
	if err := row.Scan(&sc.ID, &sc.Title, &sc.Description, &sc.UserRole, &sc.BotRole, &instructions, &difficulty, &typ, &createdAt); err != nil {
		return scenario.Scenario{}, err
	}
	sc.Difficulty = scenario.Difficulty(difficulty)
	sc.Type = scenario.Type(typ)

	if err := unmarshalList(instructions, &sc.Instructions); err != nil {
		return scenario.Scenario{}, err
	}

	parsed, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return scenario.Scenario{}, fmt.Errorf("parse scenario created_at: %w", err)
	}
	sc.CreatedAt = parsed

	return sc, nil
}

func marshalList(values []string) ([]byte, error) {
	if values == nil {
		values = []string{}
	}
	data, err := json.Marshal(values)
	if err != nil {
		return nil, fmt.Errorf("marshal string list: %w", err)
	}
	return data, nil
}

func unmarshalList(data string, dst *[]string) error {
	if strings.TrimSpace(data) == "" {
		*dst = nil
		return nil
	}
	if err := json.Unmarshal([]byte(data), dst); err != nil {
		return fmt.Errorf("unmarshal string list: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
