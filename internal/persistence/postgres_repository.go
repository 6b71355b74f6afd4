package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/edgecount/blackjack-engine/internal/domain"
	"github.com/edgecount/blackjack-engine/internal/session"
)

type postgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) UpsertSession(record SessionRecord) error {
	rulesJSON, err := json.Marshal(record.Rules)
	if err != nil {
		return fmt.Errorf("marshal rules: %w", err)
	}
	statsJSON, err := json.Marshal(record.Statistics)
	if err != nil {
		return fmt.Errorf("marshal statistics: %w", err)
	}
	const q = `
INSERT INTO sessions (session_id, mode, rules, started_at, ended_at, statistics)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (session_id) DO UPDATE SET
  mode = EXCLUDED.mode,
  rules = EXCLUDED.rules,
  ended_at = EXCLUDED.ended_at,
  statistics = EXCLUDED.statistics
`
	_, err = r.db.ExecContext(context.Background(), q,
		record.SessionID,
		string(record.Mode),
		rulesJSON,
		record.StartedAt,
		record.EndedAt,
		statsJSON,
	)
	return err
}

func (r *postgresRepository) GetSession(sessionID string) (SessionRecord, bool, error) {
	const q = `
SELECT session_id, mode, rules, started_at, ended_at, statistics
FROM sessions
WHERE session_id = $1
`
	var rec SessionRecord
	var mode string
	var rulesRaw, statsRaw []byte
	err := r.db.QueryRowContext(context.Background(), q, sessionID).Scan(
		&rec.SessionID,
		&mode,
		&rulesRaw,
		&rec.StartedAt,
		&rec.EndedAt,
		&statsRaw,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return SessionRecord{}, false, nil
	}
	if err != nil {
		return SessionRecord{}, false, err
	}
	rec.Mode = session.Mode(mode)
	if err := json.Unmarshal(rulesRaw, &rec.Rules); err != nil {
		return SessionRecord{}, false, fmt.Errorf("unmarshal rules for session %s: %w", sessionID, err)
	}
	if err := json.Unmarshal(statsRaw, &rec.Statistics); err != nil {
		return SessionRecord{}, false, fmt.Errorf("unmarshal statistics for session %s: %w", sessionID, err)
	}
	return rec, true, nil
}

func (r *postgresRepository) CreateHand(record HandRecord) error {
	outcomesJSON, err := json.Marshal(record.Outcomes)
	if err != nil {
		return fmt.Errorf("marshal outcomes: %w", err)
	}
	const q = `
INSERT INTO hands (
  session_id, hand_no, started_at, ended_at, dealer_up, final_state, outcomes
) VALUES ($1,$2,$3,$4,$5,$6,$7)
`
	_, err = r.db.ExecContext(context.Background(), q,
		record.SessionID,
		record.HandNo,
		record.StartedAt,
		record.EndedAt,
		record.DealerUp.String(),
		string(record.FinalState),
		outcomesJSON,
	)
	if isUniqueViolation(err) {
		return ErrHandAlreadyExists
	}
	if isForeignKeyViolation(err) {
		return ErrSessionNotFound
	}
	return err
}

func (r *postgresRepository) CompleteHand(sessionID string, handNo int, final HandRecord) error {
	outcomesJSON, err := json.Marshal(final.Outcomes)
	if err != nil {
		return fmt.Errorf("marshal outcomes: %w", err)
	}
	const q = `
UPDATE hands
SET ended_at=$3, final_state=$4, outcomes=$5
WHERE session_id = $1 AND hand_no = $2
`
	result, err := r.db.ExecContext(context.Background(), q,
		sessionID,
		handNo,
		final.EndedAt,
		string(final.FinalState),
		outcomesJSON,
	)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrHandNotFound
	}
	return nil
}

func (r *postgresRepository) AppendAction(record ActionRecord) error {
	const q = `
INSERT INTO actions (
  session_id, hand_no, hand_index, action_taken, correct_action, is_correct, at
) VALUES ($1,$2,$3,$4,$5,$6,$7)
`
	_, err := r.db.ExecContext(context.Background(), q,
		record.SessionID,
		record.HandNo,
		record.HandIndex,
		string(record.ActionTaken),
		string(record.CorrectAction),
		record.IsCorrect,
		record.At,
	)
	if isForeignKeyViolation(err) {
		return ErrHandNotFound
	}
	return err
}

func (r *postgresRepository) ListHands(sessionID string) ([]HandRecord, error) {
	const q = `
SELECT session_id, hand_no, started_at, ended_at, dealer_up, final_state, outcomes
FROM hands
WHERE session_id = $1
ORDER BY hand_no ASC
`
	rows, err := r.db.QueryContext(context.Background(), q, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]HandRecord, 0, 32)
	for rows.Next() {
		var rec HandRecord
		var dealerUp, finalState string
		var outcomesRaw []byte
		if err := rows.Scan(
			&rec.SessionID,
			&rec.HandNo,
			&rec.StartedAt,
			&rec.EndedAt,
			&dealerUp,
			&finalState,
			&outcomesRaw,
		); err != nil {
			return nil, err
		}
		card, err := domain.ParseCard(dealerUp)
		if err != nil {
			return nil, fmt.Errorf("parse dealer_up for session %s hand %d: %w", rec.SessionID, rec.HandNo, err)
		}
		rec.DealerUp = card
		rec.FinalState = State(finalState)
		if len(outcomesRaw) > 0 {
			if err := json.Unmarshal(outcomesRaw, &rec.Outcomes); err != nil {
				return nil, fmt.Errorf("unmarshal outcomes for session %s hand %d: %w", rec.SessionID, rec.HandNo, err)
			}
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *postgresRepository) ListActions(sessionID string, handNo int) ([]ActionRecord, error) {
	const q = `
SELECT session_id, hand_no, hand_index, action_taken, correct_action, is_correct, at
FROM actions
WHERE session_id = $1 AND hand_no = $2
ORDER BY id ASC
`
	rows, err := r.db.QueryContext(context.Background(), q, sessionID, handNo)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]ActionRecord, 0, 16)
	for rows.Next() {
		var rec ActionRecord
		var actionTaken, correctAction string
		if err := rows.Scan(
			&rec.SessionID,
			&rec.HandNo,
			&rec.HandIndex,
			&actionTaken,
			&correctAction,
			&rec.IsCorrect,
			&rec.At,
		); err != nil {
			return nil, err
		}
		rec.ActionTaken = domain.Action(actionTaken)
		rec.CorrectAction = domain.Action(correctAction)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func isUniqueViolation(err error) bool {
	return hasSQLState(err, "23505")
}

func isForeignKeyViolation(err error) bool {
	return hasSQLState(err, "23503")
}

type sqlStateProvider interface {
	SQLState() string
}

func hasSQLState(err error, code string) bool {
	if err == nil {
		return false
	}
	var stateErr sqlStateProvider
	if errors.As(err, &stateErr) && stateErr.SQLState() == code {
		return true
	}
	// Fallback for drivers that only surface SQLSTATE in error text.
	return strings.Contains(err.Error(), "SQLSTATE "+code)
}
