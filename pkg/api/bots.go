package api

import (
	"errors"
	"net/http"

	"github.com/cuemby/herald/pkg/bot"
	"github.com/cuemby/herald/pkg/manager"
	"github.com/cuemby/herald/pkg/session"
	"github.com/cuemby/herald/pkg/storage"
	"github.com/cuemby/herald/pkg/types"
)

// CreateBotResponse is returned by POST /api/bots/create
type CreateBotResponse struct {
	ID string `json:"id"`
}

// BotUpdateRequest retargets a bot
type BotUpdateRequest struct {
	ServerID string `json:"serverId" validate:"required"`
}

// lookupBot resolves the {id} path value, writing 404 when unknown
func (s *Server) lookupBot(w http.ResponseWriter, r *http.Request) (*bot.Container, bool) {
	c, err := s.manager.Bot(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "Bot not found")
		return nil, false
	}
	return c, true
}

func (s *Server) listBots(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.manager.Bots())
}

func (s *Server) createBot(w http.ResponseWriter, r *http.Request) {
	c, err := s.manager.CreateBot()
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to create bot")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, CreateBotResponse{ID: c.ID()})
}

func (s *Server) getBot(w http.ResponseWriter, r *http.Request) {
	c, ok := s.lookupBot(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, c.Info())
}

func (s *Server) updateBot(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.lookupBot(w, r); !ok {
		return
	}

	var req BotUpdateRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	err := s.manager.UpdateBotServer(r.PathValue("id"), req.ServerID)
	switch {
	case err == nil:
		writeSuccess(w)
	case errors.Is(err, manager.ErrBotNotFound):
		writeError(w, http.StatusNotFound, "Bot not found")
	case errors.Is(err, manager.ErrServerNotFound):
		writeError(w, http.StatusBadRequest, "Server not found")
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) deleteBot(w http.ResponseWriter, r *http.Request) {
	err := s.manager.DeleteBot(r.PathValue("id"))
	switch {
	case err == nil:
		writeSuccess(w)
	case errors.Is(err, manager.ErrBotNotFound):
		writeError(w, http.StatusNotFound, "Bot not found")
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) startBot(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, "start", (*bot.Container).Start)
}

func (s *Server) stopBot(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, "stop", (*bot.Container).Stop)
}

func (s *Server) restartBot(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, "restart", (*bot.Container).Restart)
}

// dispatch runs a lifecycle transition on the pool and answers immediately
func (s *Server) dispatch(w http.ResponseWriter, r *http.Request, name string, fn func(*bot.Container)) {
	c, ok := s.lookupBot(w, r)
	if !ok {
		return
	}
	if !s.manager.Submit(name, func() { fn(c) }) {
		writeError(w, http.StatusServiceUnavailable, "Shutting down")
		return
	}
	writeSuccess(w)
}

func (s *Server) botLogs(w http.ResponseWriter, r *http.Request) {
	c, ok := s.lookupBot(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(c.Logs()))
}

func (s *Server) botSession(w http.ResponseWriter, r *http.Request) {
	c, ok := s.lookupBot(w, r)
	if !ok {
		return
	}

	if err := c.DumpSession(); err != nil {
		s.logger.Warn().Err(err).Str("bot_id", c.ID()).Msg("Failed to dump session")
	}

	data, err := c.Storage().Get(session.CurrentSessionKey)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "No session stored")
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) botFriends(w http.ResponseWriter, r *http.Request) {
	c, ok := s.lookupBot(w, r)
	if !ok {
		return
	}

	friends, err := c.Friends()
	if err != nil {
		writeError(w, http.StatusBadRequest, "Bot is not running")
		return
	}
	if friends == nil {
		friends = []types.Friend{}
	}
	writeJSON(w, http.StatusOK, friends)
}

func (s *Server) unfollowFriend(w http.ResponseWriter, r *http.Request) {
	c, ok := s.lookupBot(w, r)
	if !ok {
		return
	}

	xuid := r.PathValue("xuid")
	if err := validate.Var(xuid, "len=16,numeric"); err != nil {
		writeError(w, http.StatusBadRequest, "xuid must be 16 digits")
		return
	}

	err := c.Unfollow(xuid)
	switch {
	case err == nil:
		writeSuccess(w)
	case errors.Is(err, bot.ErrNotRunning):
		writeError(w, http.StatusBadRequest, "Bot is not running")
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
