// Package httpapi exposes the agent-pay HTTP surface: invoice creation
// (manual and voice), monitoring, condition signals, listing, and liveness.
package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"agentpay/internal/domain"
	"agentpay/internal/engine"
	"agentpay/internal/speech"
)

// Server serves the agent-pay HTTP API.
type Server struct {
	orch *engine.Orchestrator
	log  *slog.Logger

	// Voice collaborators (nil in fallback mode).
	transcriber speech.Transcriber
	extractor   speech.Extractor

	// Defaults applied to voice-created invoices.
	defaultRecipient string
}

// NewServer creates a new API server. transcriber and extractor may be nil,
// in which case the voice endpoint generates invoice IDs instead of
// extracting them from audio.
func NewServer(
	orch *engine.Orchestrator,
	transcriber speech.Transcriber,
	extractor speech.Extractor,
	defaultRecipient string,
	log *slog.Logger,
) *Server {
	return &Server{
		orch:             orch,
		log:              log,
		transcriber:      transcriber,
		extractor:        extractor,
		defaultRecipient: defaultRecipient,
	}
}

// RegisterRoutes registers all API routes on the given mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /invoices", s.handleCreate)
	mux.HandleFunc("POST /invoices/voice", s.handleVoiceCreate)
	mux.HandleFunc("POST /invoices/{id}/monitor", s.handleMonitor)
	mux.HandleFunc("POST /conditions/{id}/signal", s.handleSignal)
	mux.HandleFunc("GET /invoices", s.handleList)
	mux.HandleFunc("GET /invoices/{id}", s.handleGet)
	mux.HandleFunc("GET /health", s.handleHealth)
}

// Handler returns an http.Handler with CORS middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return corsMiddleware(mux)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// writeDomainError maps the error taxonomy onto HTTP status codes.
func writeDomainError(w http.ResponseWriter, err error) {
	var (
		validation   *domain.ValidationError
		conflict     *domain.ConflictError
		notFound     *domain.NotFoundError
		insufficient *domain.InsufficientFundsError
	)
	switch {
	case errors.As(err, &validation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &conflict):
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &notFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &insufficient):
		writeError(w, http.StatusPaymentRequired, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "reading body")
		return
	}
	var req CreateInvoiceRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	inv, err := s.orch.CreateInvoice(r.Context(), domain.CreateSpec{
		ID:               req.ID,
		Amount:           req.Amount,
		RecipientAddress: req.RecipientAddress,
		Condition:        req.Condition,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, CreateInvoiceResponse{
		Message: "payment created and pending condition",
		Invoice: *inv,
	})
}

func (s *Server) handleVoiceCreate(w http.ResponseWriter, r *http.Request) {
	id, transcript, err := s.voiceInvoiceID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	generated := s.transcriber == nil || s.extractor == nil
	inv, err := s.orch.CreateInvoice(r.Context(), domain.CreateSpec{
		ID:               id,
		RecipientAddress: s.defaultRecipient,
	})
	// A generated id landing on an existing invoice is a collision, not a
	// caller mistake; pick a fresh one.
	var conflict *domain.ConflictError
	for attempt := 0; generated && errors.As(err, &conflict) && attempt < 3; attempt++ {
		id = speech.NewVoiceInvoiceID()
		inv, err = s.orch.CreateInvoice(r.Context(), domain.CreateSpec{
			ID:               id,
			RecipientAddress: s.defaultRecipient,
		})
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, VoiceCreateResponse{
		Message:         "payment created and pending condition",
		Invoice:         *inv,
		TranscribedText: transcript,
	})
}

// voiceInvoiceID resolves the invoice ID for a voice request: transcription
// and extraction when collaborators are configured, a generated ID
// otherwise.
func (s *Server) voiceInvoiceID(r *http.Request) (id, transcript string, err error) {
	if s.transcriber == nil || s.extractor == nil {
		return speech.NewVoiceInvoiceID(), "", nil
	}

	audio, _, ferr := r.FormFile("audio")
	if ferr != nil {
		return "", "", errors.New("no 'audio' file found in request")
	}
	defer audio.Close()

	transcript, err = s.transcriber.Transcribe(r.Context(), audio)
	if err != nil {
		return "", "", err
	}
	if transcript == "" {
		return "", "", errors.New("audio was unclear or silent")
	}

	id, err = s.extractor.ExtractInvoiceID(r.Context(), transcript)
	if err != nil {
		return "", transcript, err
	}
	if id == "" {
		return "", transcript, errors.New("could not extract an invoice ID from the audio")
	}
	return id, transcript, nil
}

func (s *Server) handleMonitor(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	res, err := s.orch.BeginMonitoring(r.Context(), id)
	if err != nil {
		// A pre-confirmed signal whose execution failed surfaces here; the
		// invoice reverted to MONITORING and stays retryable.
		writeDomainError(w, err)
		return
	}

	resp := MonitorResponse{InvoiceID: id, Status: res.Invoice.Status}
	if res.Triggered != nil && res.Triggered.Outcome == engine.OutcomePaid {
		resp.Detail = "invoice was pre-confirmed and paid immediately"
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSignal(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	res, err := s.orch.Trigger(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := SignalResponse{InvoiceID: id, Outcome: string(res.Outcome)}
	if res.Invoice != nil {
		resp.Status = res.Invoice.Status
		resp.TransactionHash = res.Invoice.TransactionHash
	}

	// A signal for an in-flight payment reports a pending outcome, not a
	// failure.
	status := http.StatusOK
	if res.Outcome == engine.OutcomeExecuting {
		status = http.StatusAccepted
	}
	writeJSON(w, status, resp)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	invoices, err := s.orch.ListInvoices(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if invoices == nil {
		invoices = []domain.Invoice{}
	}
	writeJSON(w, http.StatusOK, invoices)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	inv, err := s.orch.GetInvoice(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "agent-pay service is running"})
}
