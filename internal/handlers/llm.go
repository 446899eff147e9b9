package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/Folexy13/scholarhunter-sub001/internal/models"
	"github.com/Folexy13/scholarhunter-sub001/pkg/utils"
	"github.com/google/uuid"
)

const defaultRefreshCount = 10

// Assistant is implemented by services.LLMService.
type Assistant interface {
	Chat(userID uuid.UUID, req models.ChatRequest) (string, error)
	ParseCV(userID uuid.UUID, req models.CVParseRequest) (string, error)
	GenerateDocument(userID uuid.UUID, req models.GenerateDocumentRequest) (string, error)
	InterviewPrep(userID uuid.UUID, req models.InterviewPrepRequest) (string, error)
}

// ScholarshipRefresher is implemented by services.DiscoveryService.
type ScholarshipRefresher interface {
	Refresh(ctx context.Context, count int) (*models.RefreshResult, error)
}

// LLMHandler serves /api/v1/llm. Every endpoint answers 202 with a session
// ID; the reply follows as chat:chunk events on the caller's notification
// socket (or mailbox, for polling clients) and ends with a chunk whose done
// flag is set, or with a chat:error event.
type LLMHandler struct {
	assistant Assistant
}

func NewLLMHandler(assistant Assistant) *LLMHandler {
	return &LLMHandler{assistant: assistant}
}

// Chat streams an assistant reply.
//
//	{"message": "Which scholarships fit a physics MSc?", "context": {"country": "Ghana"}}
//
// @Router /api/v1/llm/chat [post]
func (h *LLMHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	serveStream(w, r, &req, "Chat stream started", "start chat", func(userID uuid.UUID) (string, error) {
		return h.assistant.Chat(userID, req)
	})
}

// ParseCV streams the structured reading of a CV.
//
// @Router /api/v1/llm/cv-parse [post]
func (h *LLMHandler) ParseCV(w http.ResponseWriter, r *http.Request) {
	var req models.CVParseRequest
	serveStream(w, r, &req, "CV parsing stream started", "start CV parsing", func(userID uuid.UUID) (string, error) {
		return h.assistant.ParseCV(userID, req)
	})
}

// GenerateDocument streams a draft document.
//
//	{"document_type": "COVER_LETTER", "data": {"scholarship": "Chevening"}}
//
// @Router /api/v1/llm/generate-document [post]
func (h *LLMHandler) GenerateDocument(w http.ResponseWriter, r *http.Request) {
	var req models.GenerateDocumentRequest
	serveStream(w, r, &req, "Document generation stream started", "start document generation", func(userID uuid.UUID) (string, error) {
		return h.assistant.GenerateDocument(userID, req)
	})
}

// InterviewPrep streams interview practice feedback.
//
// @Router /api/v1/llm/interview-prep [post]
func (h *LLMHandler) InterviewPrep(w http.ResponseWriter, r *http.Request) {
	var req models.InterviewPrepRequest
	serveStream(w, r, &req, "Interview prep stream started", "start interview prep", func(userID uuid.UUID) (string, error) {
		return h.assistant.InterviewPrep(userID, req)
	})
}

// serveStream decodes the body into dst, starts the stream for the caller
// and answers 202.
func serveStream(w http.ResponseWriter, r *http.Request, dst interface{}, message, action string, start func(uuid.UUID) (string, error)) {
	actor, ok := currentActor(w, r)
	if !ok {
		return
	}
	if err := utils.DecodeJSON(w, r, dst); err != nil {
		utils.RespondWithError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	sessionID, err := start(actor.UserID)
	if err != nil {
		respondWithServiceError(w, r, err, action)
		return
	}
	utils.RespondWithJSON(w, r, http.StatusAccepted, models.StreamStarted{
		SessionID: sessionID,
		Message:   message + ". Listen for chat:chunk events.",
	})
}

// DiscoveryHandler serves the admin catalogue refresh.
type DiscoveryHandler struct {
	refresher ScholarshipRefresher
}

func NewDiscoveryHandler(refresher ScholarshipRefresher) *DiscoveryHandler {
	return &DiscoveryHandler{refresher: refresher}
}

// Refresh deletes every scholarship and replaces the catalogue with freshly
// discovered ones. Mounted behind RequireRole(ADMIN).
//
//	POST /api/v1/scholarships/admin/refresh?count=20
//
// @Router /api/v1/scholarships/admin/refresh [post]
func (h *DiscoveryHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	count := defaultRefreshCount
	if raw := r.URL.Query().Get("count"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			utils.RespondWithError(w, r, http.StatusBadRequest, "count must be an integer")
			return
		}
		count = n
	}

	res, err := h.refresher.Refresh(r.Context(), count)
	if err != nil {
		respondWithServiceError(w, r, err, "refresh scholarships")
		return
	}
	utils.RespondWithJSON(w, r, http.StatusOK, res)
}
