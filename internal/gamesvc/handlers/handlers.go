package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/avvvet/wordclash-services/internal/gamesvc/engine"
	"github.com/go-chi/chi"
	"github.com/go-chi/jwtauth"
	log "github.com/sirupsen/logrus"
)

type Handler struct {
	tokenAuth *jwtauth.JWTAuth
	engine    *engine.Engine
	port      string
}

func NewHandler(e *engine.Engine, port string) *Handler {
	return &Handler{engine: e, port: port}
}

type Response struct {
	Message string      `json:"message"`
	Code    int         `json:"code"`
	Data    interface{} `json:"data"`
	Error   string      `json:"error"`
}

func (rs *Handler) CreateResponse(w http.ResponseWriter, rsp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(rsp.Code)

	json.NewEncoder(w).Encode(rsp)
}

var statusByKind = map[engine.Kind]int{
	engine.KindNotFound:          http.StatusNotFound,
	engine.KindInvalidTurn:       http.StatusConflict,
	engine.KindTurnExpired:       http.StatusGone,
	engine.KindPlayerNotEligible: http.StatusForbidden,
	engine.KindTerminalState:     http.StatusConflict,
	engine.KindInvalidArgument:   http.StatusBadRequest,
	engine.KindLockTimeout:       http.StatusServiceUnavailable,
}

// Fail writes an engine error with the status its kind maps to.
func (h *Handler) Fail(w http.ResponseWriter, r *http.Request, err error) {
	kind := engine.KindOf(err)
	code, ok := statusByKind[kind]
	if !ok {
		code = http.StatusInternalServerError
	}

	rsp := Response{Message: string(kind), Code: code}
	if engine.Expected(err) {
		rsp.Error = err.Error()
	} else {
		log.WithFields(log.Fields{"method": r.Method, "uri": r.RequestURI}).Errorf("request failed: %s", err)
		rsp.Error = "temporarily unavailable, try again"
	}
	h.CreateResponse(w, rsp)
}

func (h *Handler) badRequest(w http.ResponseWriter, msg string) {
	h.CreateResponse(w, Response{Message: string(engine.KindInvalidArgument), Code: http.StatusBadRequest, Error: msg})
}

func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	rsp := Response{
		Message: "game service is running at port " + h.port,
		Code:    200,
		Data:    nil,
	}
	h.CreateResponse(w, rsp)
}

// userID is the `sub` claim of the verified token.
func userID(r *http.Request) (string, error) {
	token, _, err := jwtauth.FromContext(r.Context())
	if err != nil {
		return "", err
	}
	if token == nil || token.Subject() == "" {
		return "", errors.New("token has no subject")
	}
	return token.Subject(), nil
}

func sessionID(r *http.Request) (int64, bool) {
	sid, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return sid, err == nil && sid > 0
}

func decode(r *http.Request, v interface{}) error {
	if r.ContentLength == 0 {
		return nil
	}
	return json.NewDecoder(r.Body).Decode(v)
}

func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var opts engine.SessionOptions
	if err := decode(r, &opts); err != nil {
		h.badRequest(w, "malformed session options")
		return
	}

	snap, err := h.engine.CreateSession(r.Context(), opts)
	if err != nil {
		h.Fail(w, r, err)
		return
	}
	h.CreateResponse(w, Response{Message: "session created", Code: http.StatusCreated, Data: snap})
}

func (h *Handler) JoinTeam(w http.ResponseWriter, r *http.Request) {
	sid, ok := sessionID(r)
	if !ok {
		h.badRequest(w, "invalid session id")
		return
	}
	user, err := userID(r)
	if err != nil {
		h.CreateResponse(w, Response{Code: http.StatusUnauthorized, Error: err.Error()})
		return
	}
	var req struct {
		Slot int `json:"slot"`
	}
	if err := decode(r, &req); err != nil {
		h.badRequest(w, "malformed join request")
		return
	}

	m, err := h.engine.JoinTeam(r.Context(), sid, user, req.Slot)
	if err != nil {
		h.Fail(w, r, err)
		return
	}
	h.CreateResponse(w, Response{Message: "joined", Code: http.StatusOK, Data: m})
}

func (h *Handler) StartMatch(w http.ResponseWriter, r *http.Request) {
	sid, ok := sessionID(r)
	if !ok {
		h.badRequest(w, "invalid session id")
		return
	}
	user, err := userID(r)
	if err != nil {
		h.CreateResponse(w, Response{Code: http.StatusUnauthorized, Error: err.Error()})
		return
	}

	snap, err := h.engine.StartMatch(r.Context(), sid, user)
	if err != nil {
		h.Fail(w, r, err)
		return
	}
	h.CreateResponse(w, Response{Message: "match started", Code: http.StatusOK, Data: snap})
}

func (h *Handler) SubmitGuess(w http.ResponseWriter, r *http.Request) {
	sid, ok := sessionID(r)
	if !ok {
		h.badRequest(w, "invalid session id")
		return
	}
	user, err := userID(r)
	if err != nil {
		h.CreateResponse(w, Response{Code: http.StatusUnauthorized, Error: err.Error()})
		return
	}
	var req struct {
		Word string `json:"word"`
	}
	if err := decode(r, &req); err != nil {
		h.badRequest(w, "malformed guess")
		return
	}

	res, err := h.engine.SubmitGuess(r.Context(), sid, user, req.Word)
	if err != nil {
		h.Fail(w, r, err)
		return
	}
	h.CreateResponse(w, Response{Message: "guess accepted", Code: http.StatusOK, Data: res})
}

func (h *Handler) AdvanceRound(w http.ResponseWriter, r *http.Request) {
	sid, ok := sessionID(r)
	if !ok {
		h.badRequest(w, "invalid session id")
		return
	}

	out, err := h.engine.AdvanceRound(r.Context(), sid)
	if err != nil {
		h.Fail(w, r, err)
		return
	}
	h.CreateResponse(w, Response{Message: "round checked", Code: http.StatusOK, Data: out})
}

func (h *Handler) ReviveTeam(w http.ResponseWriter, r *http.Request) {
	sid, ok := sessionID(r)
	if !ok {
		h.badRequest(w, "invalid session id")
		return
	}
	user, err := userID(r)
	if err != nil {
		h.CreateResponse(w, Response{Code: http.StatusUnauthorized, Error: err.Error()})
		return
	}
	var req struct {
		TeamID int64 `json:"team_id"`
	}
	if err := decode(r, &req); err != nil {
		h.badRequest(w, "malformed revival request")
		return
	}

	res, err := h.engine.ReviveTeam(r.Context(), sid, user, req.TeamID)
	if err != nil {
		h.Fail(w, r, err)
		return
	}
	h.CreateResponse(w, Response{Message: "revival rolled", Code: http.StatusOK, Data: res})
}

func (h *Handler) Leave(w http.ResponseWriter, r *http.Request) {
	sid, ok := sessionID(r)
	if !ok {
		h.badRequest(w, "invalid session id")
		return
	}
	user, err := userID(r)
	if err != nil {
		h.CreateResponse(w, Response{Code: http.StatusUnauthorized, Error: err.Error()})
		return
	}

	res, err := h.engine.Leave(r.Context(), sid, user)
	if err != nil {
		h.Fail(w, r, err)
		return
	}
	h.CreateResponse(w, Response{Message: "left", Code: http.StatusOK, Data: res})
}

func (h *Handler) EndMatch(w http.ResponseWriter, r *http.Request) {
	sid, ok := sessionID(r)
	if !ok {
		h.badRequest(w, "invalid session id")
		return
	}
	user, err := userID(r)
	if err != nil {
		h.CreateResponse(w, Response{Code: http.StatusUnauthorized, Error: err.Error()})
		return
	}

	if err := h.engine.EndMatch(r.Context(), sid, user); err != nil {
		h.Fail(w, r, err)
		return
	}
	h.CreateResponse(w, Response{Message: "match abandoned", Code: http.StatusOK})
}

func (h *Handler) ExtendTurn(w http.ResponseWriter, r *http.Request) {
	sid, ok := sessionID(r)
	if !ok {
		h.badRequest(w, "invalid session id")
		return
	}
	user, err := userID(r)
	if err != nil {
		h.CreateResponse(w, Response{Code: http.StatusUnauthorized, Error: err.Error()})
		return
	}
	var req struct {
		Seconds int `json:"seconds"`
	}
	if err := decode(r, &req); err != nil {
		h.badRequest(w, "malformed extension request")
		return
	}

	deadline, err := h.engine.ExtendTurn(r.Context(), sid, user, req.Seconds)
	if err != nil {
		h.Fail(w, r, err)
		return
	}
	h.CreateResponse(w, Response{Message: "turn extended", Code: http.StatusOK, Data: map[string]time.Time{"deadline": deadline}})
}

func (h *Handler) HandleTimeout(w http.ResponseWriter, r *http.Request) {
	sid, ok := sessionID(r)
	if !ok {
		h.badRequest(w, "invalid session id")
		return
	}

	applied, err := h.engine.HandleTimeout(r.Context(), sid)
	if err != nil {
		h.Fail(w, r, err)
		return
	}
	h.CreateResponse(w, Response{Message: "timeout checked", Code: http.StatusOK, Data: map[string]bool{"applied": applied}})
}

func (h *Handler) State(w http.ResponseWriter, r *http.Request) {
	sid, ok := sessionID(r)
	if !ok {
		h.badRequest(w, "invalid session id")
		return
	}

	snap, err := h.engine.State(r.Context(), sid)
	if err != nil {
		h.Fail(w, r, err)
		return
	}
	h.CreateResponse(w, Response{Code: http.StatusOK, Data: snap})
}

func (h *Handler) Guesses(w http.ResponseWriter, r *http.Request) {
	sid, ok := sessionID(r)
	if !ok {
		h.badRequest(w, "invalid session id")
		return
	}
	round := 0
	if q := r.URL.Query().Get("round"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n < 0 {
			h.badRequest(w, "invalid round")
			return
		}
		round = n
	}

	list, err := h.engine.Guesses(r.Context(), sid, round)
	if err != nil {
		h.Fail(w, r, err)
		return
	}
	h.CreateResponse(w, Response{Code: http.StatusOK, Data: list})
}

func (h *Handler) Rounds(w http.ResponseWriter, r *http.Request) {
	sid, ok := sessionID(r)
	if !ok {
		h.badRequest(w, "invalid session id")
		return
	}

	list, err := h.engine.Rounds(r.Context(), sid)
	if err != nil {
		h.Fail(w, r, err)
		return
	}
	h.CreateResponse(w, Response{Code: http.StatusOK, Data: list})
}
