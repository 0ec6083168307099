package game

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
)

// CreateSession opens a new multiplayer lobby with the caller as host. The
// join code is rolled until it clears the unique constraint.
func (s *Service) CreateSession(ctx context.Context, hostUserID string, maxPlayers int) (SessionView, error) {
	if maxPlayers <= 0 {
		maxPlayers = DefaultSessionPlayers
	}
	if maxPlayers > MaxSessionPlayers {
		maxPlayers = MaxSessionPlayers
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return SessionView{}, err
	}
	defer tx.Rollback(ctx)

	var sessionID int64
	for attempt := 0; ; attempt++ {
		code := s.newSessionCode()
		err = tx.QueryRow(ctx, `
			INSERT INTO game.sessions (code, host_user_id, status, current_week, current_year, max_players)
			VALUES ($1, $2, 'lobby', 1, 1, $3)
			RETURNING id
		`, code, hostUserID, maxPlayers).Scan(&sessionID)
		if err == nil {
			break
		}
		if isUniqueViolation(err) && attempt < 5 {
			continue
		}
		return SessionView{}, err
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO game.session_players (session_id, user_id, is_host, is_ready, is_connected)
		VALUES ($1, $2, true, false, false)
	`, sessionID, hostUserID); err != nil {
		return SessionView{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return SessionView{}, err
	}
	return s.SessionState(ctx, sessionID)
}

// JoinSession seats a player in the lobby identified by code. Sessions accept
// joins only while in the lobby and below capacity; rejoining is a no-op.
func (s *Service) JoinSession(ctx context.Context, code, userID string) (SessionView, error) {
	code = strings.ToUpper(strings.TrimSpace(code))

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return SessionView{}, err
	}
	defer tx.Rollback(ctx)

	var (
		sessionID  int64
		status     string
		maxPlayers int
	)
	err = tx.QueryRow(ctx, `
		SELECT id, status, max_players FROM game.sessions WHERE code = $1 FOR UPDATE
	`, code).Scan(&sessionID, &status, &maxPlayers)
	if errors.Is(err, pgx.ErrNoRows) {
		return SessionView{}, ErrSessionNotFound
	}
	if err != nil {
		return SessionView{}, err
	}

	var seated int
	err = tx.QueryRow(ctx, `
		SELECT count(*) FROM game.session_players WHERE session_id = $1
	`, sessionID).Scan(&seated)
	if err != nil {
		return SessionView{}, err
	}

	var already bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM game.session_players WHERE session_id = $1 AND user_id = $2)
	`, sessionID, userID).Scan(&already)
	if err != nil {
		return SessionView{}, err
	}

	if !already {
		if status != SessionLobby {
			return SessionView{}, ErrSessionNotJoinable
		}
		if seated >= maxPlayers {
			return SessionView{}, ErrSessionFull
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO game.session_players (session_id, user_id, is_host, is_ready, is_connected)
			VALUES ($1, $2, false, false, false)
		`, sessionID, userID); err != nil {
			return SessionView{}, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return SessionView{}, err
	}
	return s.SessionState(ctx, sessionID)
}

// SessionState loads the full lobby picture, players in join order.
func (s *Service) SessionState(ctx context.Context, sessionID int64) (SessionView, error) {
	var v SessionView
	err := s.db.QueryRow(ctx, `
		SELECT id, code, host_user_id, status, current_week, current_year, max_players
		FROM game.sessions WHERE id = $1
	`, sessionID).Scan(&v.ID, &v.Code, &v.HostUserID, &v.Status, &v.CurrentWeek, &v.CurrentYear, &v.MaxPlayers)
	if errors.Is(err, pgx.ErrNoRows) {
		return v, ErrSessionNotFound
	}
	if err != nil {
		return v, err
	}

	rows, err := s.db.Query(ctx, `
		SELECT sp.user_id, a.username, COALESCE(sp.studio_id, 0), sp.is_host, sp.is_ready, sp.is_connected
		FROM game.session_players sp
		JOIN users.accounts a ON a.user_id = sp.user_id
		WHERE sp.session_id = $1
		ORDER BY sp.joined_at, sp.user_id
	`, sessionID)
	if err != nil {
		return v, err
	}
	defer rows.Close()
	for rows.Next() {
		var p PlayerView
		if err := rows.Scan(&p.UserID, &p.Username, &p.StudioID, &p.IsHost, &p.IsReady, &p.IsConnected); err != nil {
			return v, err
		}
		v.Players = append(v.Players, p)
	}
	return v, rows.Err()
}

// SessionByCode resolves a join code to its session id.
func (s *Service) SessionByCode(ctx context.Context, code string) (SessionView, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	var sessionID int64
	err := s.db.QueryRow(ctx, `SELECT id FROM game.sessions WHERE code = $1`, code).Scan(&sessionID)
	if errors.Is(err, pgx.ErrNoRows) {
		return SessionView{}, ErrSessionNotFound
	}
	if err != nil {
		return SessionView{}, err
	}
	return s.SessionState(ctx, sessionID)
}

// SetReady flips the caller's ready flag. Only meaningful in the lobby but
// accepted in any status so reconnecting clients stay simple.
func (s *Service) SetReady(ctx context.Context, sessionID int64, userID string, ready bool) (SessionView, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE game.session_players SET is_ready = $1 WHERE session_id = $2 AND user_id = $3
	`, ready, sessionID, userID)
	if err != nil {
		return SessionView{}, err
	}
	if tag.RowsAffected() == 0 {
		return SessionView{}, ErrNotSessionMember
	}
	return s.SessionState(ctx, sessionID)
}

// SetConnected records socket presence for a seated player.
func (s *Service) SetConnected(ctx context.Context, sessionID int64, userID string, connected bool) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE game.session_players SET is_connected = $1 WHERE session_id = $2 AND user_id = $3
	`, connected, sessionID, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotSessionMember
	}
	return nil
}

// StartSession moves a lobby into play. Host only, every seated player must
// be ready, and each player gets their studio attached to the seat so the
// session clock can drive it.
func (s *Service) StartSession(ctx context.Context, sessionID int64, userID string) (SessionView, error) {
	view, err := s.SessionState(ctx, sessionID)
	if err != nil {
		return SessionView{}, err
	}
	if view.HostUserID != userID {
		return SessionView{}, ErrNotHost
	}
	if view.Status != SessionLobby {
		return SessionView{}, ErrSessionNotJoinable
	}
	if !view.AllReady() {
		return SessionView{}, ErrPlayersNotReady
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return SessionView{}, err
	}
	defer tx.Rollback(ctx)

	for _, p := range view.Players {
		if err := ensureStudioTx(ctx, tx, p.UserID, p.Username); err != nil {
			return SessionView{}, err
		}
		var studioID int64
		if err := tx.QueryRow(ctx, `
			SELECT id FROM game.studios WHERE owner_user_id = $1
		`, p.UserID).Scan(&studioID); err != nil {
			return SessionView{}, err
		}
		if _, err := tx.Exec(ctx, `
			UPDATE game.session_players SET studio_id = $1 WHERE session_id = $2 AND user_id = $3
		`, studioID, sessionID, p.UserID); err != nil {
			return SessionView{}, err
		}
	}

	if _, err := tx.Exec(ctx, `
		UPDATE game.sessions SET status = 'active', updated_at = now() WHERE id = $1
	`, sessionID); err != nil {
		return SessionView{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return SessionView{}, err
	}
	return s.SessionState(ctx, sessionID)
}

// EndSession closes out a run. Host only.
func (s *Service) EndSession(ctx context.Context, sessionID int64, userID string) (SessionView, error) {
	view, err := s.SessionState(ctx, sessionID)
	if err != nil {
		return SessionView{}, err
	}
	if view.HostUserID != userID {
		return SessionView{}, ErrNotHost
	}
	if _, err := s.db.Exec(ctx, `
		UPDATE game.sessions SET status = 'ended', updated_at = now() WHERE id = $1
	`, sessionID); err != nil {
		return SessionView{}, err
	}
	return s.SessionState(ctx, sessionID)
}

// ListOpenSessions returns lobbies with seats left, newest first.
func (s *Service) ListOpenSessions(ctx context.Context) ([]SessionView, error) {
	rows, err := s.db.Query(ctx, `
		SELECT se.id
		FROM game.sessions se
		WHERE se.status = 'lobby'
		  AND (SELECT count(*) FROM game.session_players sp WHERE sp.session_id = se.id) < se.max_players
		ORDER BY se.created_at DESC
		LIMIT 50
	`)
	if err != nil {
		return nil, err
	}
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]SessionView, 0, len(ids))
	for _, id := range ids {
		v, err := s.SessionState(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// IsMember reports whether userID is seated in the session.
func (s *Service) IsMember(ctx context.Context, sessionID int64, userID string) (bool, error) {
	var ok bool
	err := s.db.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM game.session_players WHERE session_id = $1 AND user_id = $2)
	`, sessionID, userID).Scan(&ok)
	return ok, err
}
