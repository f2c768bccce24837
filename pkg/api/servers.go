package api

import (
	"errors"
	"net/http"

	"github.com/cuemby/herald/pkg/manager"
	"github.com/cuemby/herald/pkg/types"
)

// ServerRequest creates or replaces a server
type ServerRequest struct {
	Hostname    string            `json:"hostname" validate:"required,hostname_rfc1123|ip"`
	Port        int               `json:"port" validate:"required,min=1,max=65535"`
	SessionInfo types.SessionInfo `json:"sessionInfo"`
}

func (req ServerRequest) toServer(id string) *types.Server {
	return &types.Server{
		ID:          id,
		Hostname:    req.Hostname,
		Port:        req.Port,
		SessionInfo: req.SessionInfo,
	}
}

func (s *Server) listServers(w http.ResponseWriter, r *http.Request) {
	servers, err := s.manager.ListServers()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if servers == nil {
		servers = []*types.Server{}
	}
	writeJSON(w, http.StatusOK, servers)
}

func (s *Server) createServer(w http.ResponseWriter, r *http.Request) {
	var req ServerRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	server := req.toServer("")
	if err := s.manager.CreateServer(server); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, server)
}

func (s *Server) getServer(w http.ResponseWriter, r *http.Request) {
	server, err := s.manager.GetServer(r.PathValue("id"))
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, server)
	case errors.Is(err, manager.ErrServerNotFound):
		writeError(w, http.StatusNotFound, "Server not found")
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) updateServer(w http.ResponseWriter, r *http.Request) {
	var req ServerRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	server := req.toServer(r.PathValue("id"))
	err := s.manager.UpdateServer(server)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, server)
	case errors.Is(err, manager.ErrServerNotFound):
		writeError(w, http.StatusNotFound, "Server not found")
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) deleteServer(w http.ResponseWriter, r *http.Request) {
	err := s.manager.DeleteServer(r.PathValue("id"))
	switch {
	case err == nil:
		writeSuccess(w)
	case errors.Is(err, manager.ErrServerNotFound):
		writeError(w, http.StatusNotFound, "Server not found")
	case errors.Is(err, manager.ErrServerInUse):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
