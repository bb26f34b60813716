package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rossicka/imperium/internal/engine"
	"github.com/rossicka/imperium/internal/faction"
	"github.com/rossicka/imperium/internal/territory"
	"github.com/rossicka/imperium/internal/war"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func readJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeOpError maps core sentinel errors onto HTTP statuses.
func writeOpError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, faction.ErrNotFound),
		errors.Is(err, territory.ErrAreaNotFound),
		errors.Is(err, war.ErrWarNotFound):
		status = http.StatusNotFound
	case errors.Is(err, faction.ErrAlreadyExists),
		errors.Is(err, faction.ErrAlreadyMember),
		errors.Is(err, territory.ErrAlreadyClaimed),
		errors.Is(err, war.ErrDuplicateWar):
		status = http.StatusConflict
	case errors.Is(err, faction.ErrInsufficientFunds):
		status = http.StatusPaymentRequired
	case errors.Is(err, faction.ErrOutOfRange),
		errors.Is(err, faction.ErrNotMember),
		errors.Is(err, territory.ErrNameTooShort),
		errors.Is(err, territory.ErrBadlands),
		errors.Is(err, territory.ErrNotClaimed),
		errors.Is(err, war.ErrInvalidPair),
		errors.Is(err, war.ErrCassusBelliTooShort),
		errors.Is(err, engine.ErrTooFewMembers):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, engine.ErrFeatureDisabled):
		status = http.StatusForbidden
	}
	writeError(w, status, err.Error())
}
