package server

import (
	"encoding/json"
	"net/http"

	"github.com/wfunc/pongserver/engine"
	"github.com/wfunc/pongserver/logger"
	"github.com/wfunc/pongserver/models"
)

// The control surface is a handful of JSON POST endpoints mirroring the
// engine's party operations. The duplex channel stays event-only.

type controlRequest struct {
	Token string           `json:"token"`
	Mode  models.PartyMode `json:"mode,omitempty"`
}

func (s *PongServer) handleJoin(w http.ResponseWriter, r *http.Request) {
	req, identity, ok := s.decodeControl(w, r)
	if !ok {
		return
	}
	res, err := s.engine.Join(req.Mode, identity)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, res)
}

func (s *PongServer) handleStart(w http.ResponseWriter, r *http.Request) {
	req, identity, ok := s.decodeControl(w, r)
	if !ok {
		return
	}
	res, err := s.engine.StartParty(req.Mode, identity)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, res)
}

func (s *PongServer) handleLeave(w http.ResponseWriter, r *http.Request) {
	_, identity, ok := s.decodeControl(w, r)
	if !ok {
		return
	}
	res, err := s.engine.Leave(identity)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, res)
}

func (s *PongServer) handleResume(w http.ResponseWriter, r *http.Request) {
	_, identity, ok := s.decodeControl(w, r)
	if !ok {
		return
	}
	res, err := s.engine.Resume(identity)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, res)
}

func (s *PongServer) decodeControl(w http.ResponseWriter, r *http.Request) (controlRequest, string, bool) {
	var req controlRequest
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return req, "", false
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return req, "", false
	}
	identity, err := s.auth(req.Token)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return req, "", false
	}
	return req, identity, true
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Log.Errorf("Failed to encode control response: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch err {
	case engine.ErrInvalidMode:
		status = http.StatusBadRequest
	case engine.ErrNotInGame, engine.ErrPartyNotFound:
		status = http.StatusNotFound
	case engine.ErrNotEnoughPlayers:
		status = http.StatusConflict
	case engine.ErrShuttingDown:
		status = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
