package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/wolfman30/clinic-scheduler/internal/intent"
	"github.com/wolfman30/clinic-scheduler/pkg/logging"
)

// Engine processes one inbound message.
type Engine interface {
	HandleMessage(ctx context.Context, in Inbound) (Result, error)
}

// RoleResolver maps a sender id to its role. Callers never choose their own.
type RoleResolver func(senderID string) intent.Role

// HandleSafely runs one turn on engine. A panic inside the engine is returned
// as an error so the caller can still answer the sender.
func HandleSafely(ctx context.Context, engine Engine, in Inbound) (res Result, err error) {
	defer func() {
		if p := recover(); p != nil {
			res = Result{Reply: replyApology, Kind: KindExternalFailure}
			err = fmt.Errorf("conversation: engine panic: %v", p)
		}
	}()
	return engine.HandleMessage(ctx, in)
}

// MessageRequest is the JSON body of POST /v1/messages.
type MessageRequest struct {
	SenderID   string `json:"sender_id"`
	SenderName string `json:"sender_name,omitempty"`
	Text       string `json:"text"`
	MessageID  string `json:"message_id,omitempty"`
}

// MessageResponse is returned for every processed message.
type MessageResponse struct {
	ResponseText string `json:"response_text"`
	Committed    bool   `json:"committed"`
	Intent       string `json:"intent,omitempty"`
	Error        string `json:"error,omitempty"`
}

// Handler wires HTTP requests to the dialogue engine.
type Handler struct {
	engine Engine
	roles  RoleResolver
	logger *logging.Logger
}

// NewHandler creates a conversation handler. A nil roles treats every sender
// as a patient.
func NewHandler(engine Engine, roles RoleResolver, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	if roles == nil {
		roles = func(string) intent.Role { return intent.RolePatient }
	}
	return &Handler{engine: engine, roles: roles, logger: logger}
}

// Message handles POST /v1/messages.
func (h *Handler) Message(w http.ResponseWriter, r *http.Request) {
	var req MessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("failed to decode message request", "error", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	req.SenderID = strings.TrimSpace(req.SenderID)
	if req.SenderID == "" || strings.TrimSpace(req.Text) == "" {
		http.Error(w, "sender_id and text are required", http.StatusBadRequest)
		return
	}
	if req.MessageID == "" {
		req.MessageID = uuid.NewString()
	}

	res, err := HandleSafely(r.Context(), h.engine, Inbound{
		SenderID:   req.SenderID,
		SenderName: req.SenderName,
		Role:       h.roles(req.SenderID),
		Text:       req.Text,
		MessageID:  req.MessageID,
		Timestamp:  time.Now().UTC(),
	})
	resp := MessageResponse{
		ResponseText: res.Reply,
		Committed:    res.Committed,
		Intent:       string(res.Intent),
		Error:        string(res.Kind),
	}
	if err != nil {
		h.logger.Error("failed to process message", "sender_id", req.SenderID, "error", err)
		if resp.ResponseText == "" {
			resp.ResponseText = replyApology
		}
		if resp.Error == "" {
			resp.Error = string(KindExternalFailure)
		}
		h.writeJSON(w, http.StatusBadGateway, resp)
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to write JSON response", "error", err)
	}
}
