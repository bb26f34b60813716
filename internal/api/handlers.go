package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rossicka/imperium/internal/events"
	"github.com/rossicka/imperium/internal/faction"
	"github.com/rossicka/imperium/internal/war"
)

func (s *Server) handleListFactions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Factions.Serialize())
}

func (s *Server) handleGetFaction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	for _, rec := range s.Factions.Serialize() {
		if rec.ID == id {
			writeJSON(w, http.StatusOK, rec)
			return
		}
	}
	writeError(w, http.StatusNotFound, fmt.Sprintf("faction %q not found", id))
}

func (s *Server) handleFactionPolicies(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !s.Factions.Exists(id) {
		writeError(w, http.StatusNotFound, fmt.Sprintf("faction %q not found", id))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"defensive_bonus": s.Tax.DefensiveBonus(id),
		"claim_count":     s.Areas.ClaimCount(id),
		"next_claim_cost": s.Opts.ClaimCost(s.Areas.ClaimCount(id)),
	})
}

func (s *Server) handleCreateFaction(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID          string `json:"id"`
		Description string `json:"description"`
		OwnerID     string `json:"owner_id"`
	}
	if err := readJSON(r, &req); err != nil || req.ID == "" || req.OwnerID == "" {
		writeError(w, http.StatusBadRequest, "id and owner_id are required")
		return
	}
	f, err := s.Coord.CreateFaction(req.ID, req.Description, req.OwnerID)
	if err != nil {
		writeOpError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, f)
}

func (s *Server) handleDisbandFaction(w http.ResponseWriter, r *http.Request) {
	if err := s.Coord.Disband(chi.URLParam(r, "id")); err != nil {
		writeOpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "disbanded"})
}

func (s *Server) handleAddMember(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"user_id"`
		Role   string `json:"role"`
	}
	if err := readJSON(r, &req); err != nil || req.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	role := faction.RoleMember
	if req.Role == "manager" {
		role = faction.RoleManager
	}
	if err := s.Factions.AddMember(chi.URLParam(r, "id"), req.UserID, role); err != nil {
		writeOpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "added"})
}

func (s *Server) handleRemoveMember(w http.ResponseWriter, r *http.Request) {
	if err := s.Factions.RemoveMember(chi.URLParam(r, "id"), chi.URLParam(r, "userID")); err != nil {
		writeOpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

func (s *Server) handleSetTaxRate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Rate float64 `json:"rate"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if err := s.Factions.SetTaxRate(chi.URLParam(r, "id"), req.Rate); err != nil {
		writeOpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (s *Server) handleSetTaxChest(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ChestID string `json:"chest_id"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if err := s.Factions.SetTaxChest(chi.URLParam(r, "id"), req.ChestID); err != nil {
		writeOpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Amount int64 `json:"amount"`
	}
	if err := readJSON(r, &req); err != nil || req.Amount <= 0 {
		writeError(w, http.StatusBadRequest, "amount must be positive")
		return
	}
	if err := s.Factions.Deposit(chi.URLParam(r, "id"), req.Amount); err != nil {
		writeOpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deposited"})
}

func (s *Server) handleListAreas(w http.ResponseWriter, r *http.Request) {
	if factionID := r.URL.Query().Get("faction"); factionID != "" {
		writeJSON(w, http.StatusOK, s.Areas.GetAllClaimedByFaction(factionID))
		return
	}
	writeJSON(w, http.StatusOK, s.Areas.Serialize())
}

func (s *Server) handleGetArea(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	a := s.Areas.Get(id)
	if a == nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("area %q not found", id))
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleAreaPolicies(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if s.Areas.Get(id) == nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("area %q not found", id))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"gather_bonus":    s.Tax.GatherBonus(id),
		"decay_reduction": s.Tax.DecayReduction(id),
	})
}

func (s *Server) handleListTowns(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Areas.Towns())
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FactionID string `json:"faction_id"`
		Name      string `json:"name"`
	}
	if err := readJSON(r, &req); err != nil || req.FactionID == "" {
		writeError(w, http.StatusBadRequest, "faction_id is required")
		return
	}
	if err := s.Coord.Claim(chi.URLParam(r, "id"), req.FactionID, req.Name); err != nil {
		writeOpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "claimed"})
}

func (s *Server) handleUnclaim(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FactionID string   `json:"faction_id"`
		AreaIDs   []string `json:"area_ids"`
	}
	if err := readJSON(r, &req); err != nil || req.FactionID == "" {
		writeError(w, http.StatusBadRequest, "faction_id is required")
		return
	}
	if err := s.Coord.Unclaim(req.FactionID, req.AreaIDs); err != nil {
		writeOpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "unclaimed"})
}

func (s *Server) handleMarkTown(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MayorID string `json:"mayor_id"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if err := s.Areas.MarkTown(chi.URLParam(r, "id"), req.MayorID); err != nil {
		writeOpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "town"})
}

func (s *Server) handleRemoveTown(w http.ResponseWriter, r *http.Request) {
	if err := s.Areas.RemoveTown(chi.URLParam(r, "id")); err != nil {
		writeOpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

func (s *Server) handleListWars(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Wars.Serialize())
}

func (s *Server) handleListActiveWars(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Wars.GetActiveWars())
}

func (s *Server) handleDeclareWar(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AttackerID  string `json:"attacker_id"`
		DefenderID  string `json:"defender_id"`
		CassusBelli string `json:"cassus_belli"`
	}
	if err := readJSON(r, &req); err != nil || req.AttackerID == "" || req.DefenderID == "" {
		writeError(w, http.StatusBadRequest, "attacker_id and defender_id are required")
		return
	}
	decl, err := s.Coord.DeclareWar(req.AttackerID, req.DefenderID, req.CassusBelli)
	if err != nil {
		writeOpError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, decl)
}

func (s *Server) handleEndWar(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AttackerID string `json:"attacker_id"`
		DefenderID string `json:"defender_id"`
		Reason     string `json:"reason"`
	}
	if err := readJSON(r, &req); err != nil || req.AttackerID == "" || req.DefenderID == "" {
		writeError(w, http.StatusBadRequest, "attacker_id and defender_id are required")
		return
	}
	state := war.StateEndedTreaty
	if req.Reason == "surrender" {
		state = war.StateEndedSurrender
	}
	ended, err := s.Coord.EndWar(req.AttackerID, req.DefenderID, state)
	if err != nil {
		writeOpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ended)
}

// handleGather is the economic-event input: a gather event at a cell, taxed
// into the owning faction's treasury.
func (s *Server) handleGather(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AreaID string `json:"area_id"`
		Amount int64  `json:"amount"`
	}
	if err := readJSON(r, &req); err != nil || req.AreaID == "" || req.Amount <= 0 {
		writeError(w, http.StatusBadRequest, "area_id and positive amount are required")
		return
	}
	tax := s.Tax.ApplyGather(req.AreaID, req.Amount)
	writeJSON(w, http.StatusOK, map[string]int64{"taxed": tax, "net": req.Amount - tax})
}

func writeSSE(w http.ResponseWriter, flusher http.Flusher, ev events.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data)
	flusher.Flush()
}

func writePing(w http.ResponseWriter, flusher http.Flusher) {
	fmt.Fprint(w, ": ping\n\n")
	flusher.Flush()
}
