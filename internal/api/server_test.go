package api

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"marquee/internal/game"
)

func TestWriteDomainErrorStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{game.ErrDuplicateIdempotency, http.StatusConflict},
		{game.ErrAdvanceInFlight, http.StatusConflict},
		{game.ErrStudioInSession, http.StatusConflict},
		{game.ErrEmailTaken, http.StatusConflict},
		{game.ErrInvalidCredentials, http.StatusUnauthorized},
		{game.ErrInsufficientFunds, http.StatusBadRequest},
		{game.ErrInvalidGenre, http.StatusBadRequest},
		{game.ErrPlayersNotReady, http.StatusBadRequest},
		{game.ErrSessionNotJoinable, http.StatusBadRequest},
		{game.ErrSessionNotActive, http.StatusBadRequest},
		{game.ErrSessionFull, http.StatusBadRequest},
		{game.ErrNotHost, http.StatusForbidden},
		{game.ErrNotSessionMember, http.StatusForbidden},
		{game.ErrFilmNotFound, http.StatusNotFound},
		{game.ErrStudioNotFound, http.StatusNotFound},
		{game.ErrSessionNotFound, http.StatusNotFound},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range tests {
		rec := httptest.NewRecorder()
		writeDomainError(rec, tc.err)
		if rec.Code != tc.want {
			t.Fatalf("writeDomainError(%v) = %d, want %d", tc.err, rec.Code, tc.want)
		}
		if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
			t.Fatalf("content type = %q", ct)
		}
	}
}
