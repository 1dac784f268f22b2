package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/Myudi422/youtube-telegram-downloader/core/media"
)

type postgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore keeps sessions in the bot_sessions table so a restart
// does not forget pending choices.
func NewPostgresStore(db *sqlx.DB) Store {
	return &postgresStore{db: db}
}

type sessionRow struct {
	UserID          int64     `db:"user_id"`
	State           string    `db:"state"`
	PendingURL      string    `db:"pending_url"`
	OutputKind      string    `db:"output_kind"`
	FormatID        string    `db:"format_id"`
	OfferedFormats  string    `db:"offered_formats"`
	RequestID       string    `db:"request_id"`
	PromptChatID    int64     `db:"prompt_chat_id"`
	PromptMessageID string    `db:"prompt_message_id"`
	UpdatedAt       time.Time `db:"updated_at"`
}

func toRow(userID int64, s Session) sessionRow {
	st := s.State
	if st == "" {
		st = StateIdle
	}
	return sessionRow{
		UserID:          userID,
		State:           string(st),
		PendingURL:      s.PendingURL,
		OutputKind:      string(s.OutputKind),
		FormatID:        s.FormatID,
		OfferedFormats:  strings.Join(s.Formats, ","),
		RequestID:       s.RequestID,
		PromptChatID:    s.PromptChatID,
		PromptMessageID: s.PromptMessageID,
		UpdatedAt:       s.UpdatedAt,
	}
}

func (r sessionRow) session() Session {
	var offered []string
	if r.OfferedFormats != "" {
		offered = strings.Split(r.OfferedFormats, ",")
	}
	return Session{
		State:           State(r.State),
		PendingURL:      r.PendingURL,
		OutputKind:      media.OutputKind(r.OutputKind),
		FormatID:        r.FormatID,
		Formats:         offered,
		RequestID:       r.RequestID,
		PromptChatID:    r.PromptChatID,
		PromptMessageID: r.PromptMessageID,
		UpdatedAt:       r.UpdatedAt,
	}
}

const (
	selectSession = `SELECT user_id, state, pending_url, output_kind, format_id, offered_formats,
		request_id, prompt_chat_id, prompt_message_id, updated_at
		FROM bot_sessions WHERE user_id = $1`

	upsertSession = `INSERT INTO bot_sessions
		(user_id, state, pending_url, output_kind, format_id, offered_formats,
			request_id, prompt_chat_id, prompt_message_id, updated_at)
		VALUES (:user_id, :state, :pending_url, :output_kind, :format_id, :offered_formats,
			:request_id, :prompt_chat_id, :prompt_message_id, :updated_at)
		ON CONFLICT (user_id) DO UPDATE SET
			state = EXCLUDED.state,
			pending_url = EXCLUDED.pending_url,
			output_kind = EXCLUDED.output_kind,
			format_id = EXCLUDED.format_id,
			offered_formats = EXCLUDED.offered_formats,
			request_id = EXCLUDED.request_id,
			prompt_chat_id = EXCLUDED.prompt_chat_id,
			prompt_message_id = EXCLUDED.prompt_message_id,
			updated_at = EXCLUDED.updated_at`

	resetActive = `DELETE FROM bot_sessions WHERE state IN ('downloading', 'uploading')`

	countByState = `SELECT state, count(*) AS n FROM bot_sessions GROUP BY state`
)

func (p *postgresStore) Load(ctx context.Context, userID int64) (Session, bool, error) {
	var row sessionRow
	err := p.db.GetContext(ctx, &row, selectSession, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, false, nil
	}
	if err != nil {
		return Session{}, false, fmt.Errorf("load session %d: %w", userID, err)
	}
	return row.session(), true, nil
}

func (p *postgresStore) Save(ctx context.Context, userID int64, s Session) error {
	row := toRow(userID, s)
	if row.UpdatedAt.IsZero() {
		row.UpdatedAt = time.Now().UTC()
	}
	if _, err := p.db.NamedExecContext(ctx, upsertSession, row); err != nil {
		return fmt.Errorf("save session %d: %w", userID, err)
	}
	return nil
}

func (p *postgresStore) Delete(ctx context.Context, userID int64) error {
	if _, err := p.db.ExecContext(ctx, `DELETE FROM bot_sessions WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("delete session %d: %w", userID, err)
	}
	return nil
}

func (p *postgresStore) ResetActive(ctx context.Context) (int, error) {
	res, err := p.db.ExecContext(ctx, resetActive)
	if err != nil {
		return 0, fmt.Errorf("reset active sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reset active sessions: %w", err)
	}
	return int(n), nil
}

func (p *postgresStore) Stats(ctx context.Context) (map[State]int, error) {
	var rows []struct {
		State string `db:"state"`
		N     int    `db:"n"`
	}
	if err := p.db.SelectContext(ctx, &rows, countByState); err != nil {
		return nil, fmt.Errorf("session stats: %w", err)
	}
	out := make(map[State]int, len(rows))
	for _, r := range rows {
		out[State(r.State)] = r.N
	}
	return out, nil
}
