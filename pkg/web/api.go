package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/dbehnke/sir-codec/pkg/config"
	"github.com/dbehnke/sir-codec/pkg/database"
	"github.com/dbehnke/sir-codec/pkg/ircode"
	"github.com/dbehnke/sir-codec/pkg/library"
	"github.com/dbehnke/sir-codec/pkg/logger"
	"github.com/dbehnke/sir-codec/pkg/metrics"
)

const (
	maxRequestBody  = 1 << 20
	defaultPerPage  = 50
	maxPerPage      = 500
	maxTagLength    = 64
	commandListSize = 1000
)

// Deps are the services the API works with. Commands, Captures and
// Collector may be nil.
type Deps struct {
	Codec     *ircode.Codec
	Commands  *database.CommandRepository
	Captures  *database.CaptureRepository
	Collector *metrics.Collector
	Defaults  config.CodecConfig
}

// LearnerControl is the part of the IR learner the API drives
type LearnerControl interface {
	Learning() bool
	Connected() bool
	SetLearning(on bool) error
}

// API handles REST API endpoints
type API struct {
	logger  *logger.Logger
	deps    Deps
	hub     *WebSocketHub
	learner LearnerControl
}

// NewAPI creates a new API instance
func NewAPI(deps Deps, hub *WebSocketHub, log *logger.Logger) *API {
	if deps.Codec == nil {
		deps.Codec = ircode.New(ircode.WithLogger(log), ircode.WithMetrics(deps.Collector))
	}
	return &API{
		logger: log,
		deps:   deps,
		hub:    hub,
	}
}

// SetLearner attaches the IR learner served by /api/learner
func (a *API) SetLearner(l LearnerControl) {
	a.learner = l
}

type preprocessRequest struct {
	Command        string `json:"command"`
	PauseThreshold *int   `json:"pause_threshold,omitempty"`
	MaxFrames      *int   `json:"max_frames,omitempty"`
	Normalize      *bool  `json:"normalize,omitempty"`
}

type convertRequest struct {
	Command  string `json:"command"`
	CodeType string `json:"code_type,omitempty"`
	Repeat   *int   `json:"repeat,omitempty"`
	Channel  *int   `json:"channel,omitempty"`
	Tag      string `json:"tag,omitempty"` // Store the result under this tag
}

type convertResponse struct {
	*ircode.Conversion
	Saved *database.Command `json:"saved,omitempty"`
}

type learnerRequest struct {
	Learning bool `json:"learning"`
}

type commandRequest struct {
	Tag      string `json:"tag"`
	Command  string `json:"command"`
	CodeType string `json:"code_type,omitempty"`
	Repeat   int    `json:"repeat,omitempty"`
	Channel  int    `json:"channel,omitempty"`
}

// HandleStatus handles the /api/status endpoint
func (a *API) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		a.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	response := map[string]interface{}{
		"status":   "running",
		"service":  "sir-codec",
		"build":    CurrentBuildInfo(),
		"learning": a.learner != nil && a.learner.Learning(),
		"defaults": map[string]interface{}{
			"pause_threshold": a.deps.Defaults.PauseThreshold,
			"max_frames":      a.deps.Defaults.MaxFrames,
			"normalize":       a.deps.Defaults.Normalize,
			"code_type":       a.deps.Defaults.CodeType,
			"repeat":          a.deps.Defaults.Repeat,
			"channel":         a.deps.Defaults.Channel,
		},
	}
	if a.hub != nil {
		response["clients"] = a.hub.GetClientCount()
	}
	if c := a.deps.Collector; c != nil {
		ok, failed := c.GetPreProcessed()
		response["captures"] = c.GetCapturesReceived()
		response["preprocessed"] = ok
		response["preprocess_errors"] = failed
		response["conversion_errors"] = c.GetConversionErrors()
	}
	if a.deps.Commands != nil {
		if n, err := a.deps.Commands.Count(); err == nil {
			response["commands"] = n
		} else {
			a.logger.Warn("Failed to count commands", logger.Error(err))
		}
	}

	a.writeJSON(w, http.StatusOK, response)
}

// HandlePreProcess handles POST /api/preprocess. Missing parameters take the
// configured codec defaults.
func (a *API) HandlePreProcess(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		a.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req preprocessRequest
	if !a.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Command) == "" {
		a.writeError(w, http.StatusBadRequest, "command is required")
		return
	}

	threshold := intOr(req.PauseThreshold, a.deps.Defaults.PauseThreshold)
	maxFrames := intOr(req.MaxFrames, a.deps.Defaults.MaxFrames)
	normalize := a.deps.Defaults.Normalize
	if req.Normalize != nil {
		normalize = *req.Normalize
	}

	result, err := a.deps.Codec.PreProcess(req.Command, threshold, maxFrames, normalize)
	if err != nil {
		a.writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	if a.hub != nil {
		a.hub.BroadcastPreProcess(result)
	}
	a.writeJSON(w, http.StatusOK, result)
}

// HandleConvert handles POST /api/convert. With a tag the converted command
// is also stored in the library.
func (a *API) HandleConvert(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		a.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req convertRequest
	if !a.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Command) == "" {
		a.writeError(w, http.StatusBadRequest, "command is required")
		return
	}
	if req.Tag != "" && a.deps.Commands == nil {
		a.writeError(w, http.StatusServiceUnavailable, "command library is disabled")
		return
	}
	if len(req.Tag) > maxTagLength {
		a.writeError(w, http.StatusBadRequest, "tag is too long")
		return
	}

	code := ircode.CodeType(req.CodeType)
	if req.CodeType == "" {
		code = ircode.CodeType(a.deps.Defaults.CodeType)
	}
	repeat := intOr(req.Repeat, a.deps.Defaults.Repeat)
	channel := intOr(req.Channel, a.deps.Defaults.Channel)

	conv, err := a.deps.Codec.Convert(req.Command, code, repeat, channel)
	if err != nil {
		a.writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if a.hub != nil {
		a.hub.BroadcastConvert(conv)
	}

	resp := convertResponse{Conversion: conv}
	if req.Tag != "" {
		cmd := &database.Command{
			Tag:      req.Tag,
			Format:   conv.Format,
			Command:  conv.Converted,
			Source:   strings.TrimSpace(req.Command),
			CodeType: string(code),
			Repeat:   repeat,
			Channel:  channel,
		}
		if !a.save(w, cmd) {
			return
		}
		resp.Saved = cmd
	}

	a.writeJSON(w, http.StatusOK, resp)
}

// HandleCommands handles /api/commands.
//
//	GET    ?tag=  one command, ?format= by format, ?page=&per_page= paginated
//	POST   store a command as is
//	DELETE ?tag=  remove a command
func (a *API) HandleCommands(w http.ResponseWriter, r *http.Request) {
	if a.deps.Commands == nil {
		a.writeError(w, http.StatusServiceUnavailable, "command library is disabled")
		return
	}

	switch r.Method {
	case http.MethodGet:
		a.listCommands(w, r)
	case http.MethodPost:
		a.createCommand(w, r)
	case http.MethodDelete:
		a.deleteCommand(w, r)
	default:
		a.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (a *API) listCommands(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if tag := q.Get("tag"); tag != "" {
		cmd, err := a.deps.Commands.GetByTag(tag)
		if database.IsNotFound(err) {
			a.writeError(w, http.StatusNotFound, "command not found")
			return
		}
		if err != nil {
			a.internalError(w, "Failed to load command", err)
			return
		}
		a.writeJSON(w, http.StatusOK, cmd)
		return
	}

	if format := q.Get("format"); format != "" {
		cmds, err := a.deps.Commands.ListByFormat(format, commandListSize)
		if err != nil {
			a.internalError(w, "Failed to list commands", err)
			return
		}
		a.writeJSON(w, http.StatusOK, nonNil(cmds))
		return
	}

	if q.Has("page") || q.Has("per_page") {
		page := queryInt(q.Get("page"), 1)
		perPage := min(queryInt(q.Get("per_page"), defaultPerPage), maxPerPage)
		cmds, total, err := a.deps.Commands.ListPaginated(page, perPage)
		if err != nil {
			a.internalError(w, "Failed to list commands", err)
			return
		}
		a.writeJSON(w, http.StatusOK, map[string]interface{}{
			"commands": nonNil(cmds),
			"total":    total,
			"page":     page,
			"per_page": perPage,
		})
		return
	}

	cmds, err := a.deps.Commands.List(commandListSize)
	if err != nil {
		a.internalError(w, "Failed to list commands", err)
		return
	}
	a.writeJSON(w, http.StatusOK, nonNil(cmds))
}

// HandleCaptures handles GET /api/captures, the learner capture log newest
// first
func (a *API) HandleCaptures(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		a.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if a.deps.Captures == nil {
		a.writeError(w, http.StatusServiceUnavailable, "capture log not available")
		return
	}

	q := r.URL.Query()
	page := queryInt(q.Get("page"), 1)
	perPage := min(queryInt(q.Get("per_page"), defaultPerPage), maxPerPage)
	captures, total, err := a.deps.Captures.GetRecentPaginated(page, perPage)
	if err != nil {
		a.internalError(w, "Failed to list captures", err)
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]interface{}{
		"captures": nonNil(captures),
		"total":    total,
		"page":     page,
		"per_page": perPage,
	})
}

func (a *API) createCommand(w http.ResponseWriter, r *http.Request) {
	var req commandRequest
	if !a.decode(w, r, &req) {
		return
	}
	req.Tag = strings.TrimSpace(req.Tag)
	req.Command = strings.TrimSpace(req.Command)
	switch {
	case req.Tag == "":
		a.writeError(w, http.StatusBadRequest, "tag is required")
		return
	case len(req.Tag) > maxTagLength:
		a.writeError(w, http.StatusBadRequest, "tag is too long")
		return
	case req.Command == "":
		a.writeError(w, http.StatusBadRequest, "command is required")
		return
	}

	entry := library.Entry{Tag: req.Tag, Command: req.Command}
	if err := library.Validate(&entry); err != nil {
		a.writeError(w, http.StatusBadRequest, "invalid command: "+err.Error())
		return
	}

	cmd := &database.Command{
		Tag:      req.Tag,
		Format:   entry.Format,
		Command:  req.Command,
		CodeType: req.CodeType,
		Repeat:   req.Repeat,
		Channel:  req.Channel,
	}
	if !a.save(w, cmd) {
		return
	}
	a.writeJSON(w, http.StatusCreated, cmd)
}

func (a *API) deleteCommand(w http.ResponseWriter, r *http.Request) {
	tag := r.URL.Query().Get("tag")
	if tag == "" {
		a.writeError(w, http.StatusBadRequest, "tag is required")
		return
	}

	n, err := a.deps.Commands.DeleteByTag(tag)
	if err != nil {
		a.internalError(w, "Failed to delete command", err)
		return
	}
	if n == 0 {
		a.writeError(w, http.StatusNotFound, "command not found")
		return
	}

	a.logger.Info("Command deleted", logger.String("tag", tag))
	w.WriteHeader(http.StatusNoContent)
}

// HandleLearner handles /api/learner. GET reports the learner state, POST
// {"learning": bool} asks the learner to switch mode; the reported state
// follows once the learner confirms.
func (a *API) HandleLearner(w http.ResponseWriter, r *http.Request) {
	if a.learner == nil {
		a.writeError(w, http.StatusServiceUnavailable, "learner is disabled")
		return
	}

	switch r.Method {
	case http.MethodGet:
	case http.MethodPost:
		var req learnerRequest
		if !a.decode(w, r, &req) {
			return
		}
		if err := a.learner.SetLearning(req.Learning); err != nil {
			a.logger.Warn("Failed to switch learner mode", logger.Error(err))
			a.writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		a.writeJSON(w, http.StatusAccepted, map[string]interface{}{
			"requested": req.Learning,
			"learning":  a.learner.Learning(),
			"connected": a.learner.Connected(),
		})
		return
	default:
		a.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	a.writeJSON(w, http.StatusOK, map[string]interface{}{
		"learning":  a.learner.Learning(),
		"connected": a.learner.Connected(),
	})
}

// save upserts cmd and announces it. It writes the error response itself and
// reports whether the caller may continue.
func (a *API) save(w http.ResponseWriter, cmd *database.Command) bool {
	if err := a.deps.Commands.Upsert(cmd); err != nil {
		a.internalError(w, "Failed to save command", err)
		return false
	}

	a.logger.Info("Command saved",
		logger.String("tag", cmd.Tag),
		logger.String("format", cmd.Format))
	if a.deps.Collector != nil {
		a.deps.Collector.CommandSaved()
	}
	if a.hub != nil {
		a.hub.BroadcastCommandSaved(cmd.Tag, cmd.Format, cmd.Command)
	}
	return true
}

func (a *API) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			a.writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		a.writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return false
	}
	return true
}

func (a *API) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.logger.Warn("Failed to encode response", logger.Error(err))
	}
}

func (a *API) writeError(w http.ResponseWriter, status int, msg string) {
	a.writeJSON(w, status, map[string]string{"error": msg})
}

func (a *API) internalError(w http.ResponseWriter, msg string, err error) {
	a.logger.Error(msg, logger.Error(err))
	a.writeError(w, http.StatusInternalServerError, "internal error")
}

func intOr(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}

func queryInt(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return def
	}
	return n
}

// nonNil keeps empty lists encoding as [] rather than null
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
