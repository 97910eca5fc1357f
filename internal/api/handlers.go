package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.io/infrasutra/chainmail/internal/app"
	"github.io/infrasutra/chainmail/internal/contract"
	"github.io/infrasutra/chainmail/internal/gateway"
	"github.io/infrasutra/chainmail/internal/mailbox"
	"github.io/infrasutra/chainmail/internal/store"
	"github.io/infrasutra/chainmail/internal/wallet"
)

type meResponse struct {
	Account   string `json:"account"`
	Connected bool   `json:"connected"`
	Tab       string `json:"tab"`
	Status    string `json:"status"`
	DemoMode  bool   `json:"demoMode"`
}

type emailView struct {
	ID          uint64 `json:"emailId"`
	Subject     string `json:"subject"`
	Timestamp   int64  `json:"timestamp"`
	Time        string `json:"time"`
	State       uint8  `json:"state"`
	StateText   string `json:"stateText"`
	StateColor  string `json:"stateColor"`
	Sender      string `json:"sender"`
	Recipient   string `json:"recipient"`
	CanMarkRead bool   `json:"canMarkRead"`
	CanDelete   bool   `json:"canDelete"`
}

type transactionView struct {
	ID        string  `json:"id"`
	Method    string  `json:"method"`
	EmailID   *uint64 `json:"emailId,omitempty"`
	TxHash    string  `json:"txHash,omitempty"`
	Status    string  `json:"status"`
	Error     string  `json:"error,omitempty"`
	CreatedAt string  `json:"createdAt"`
	UpdatedAt string  `json:"updatedAt"`
}

type sendRequest struct {
	Recipient string `json:"recipient"`
	Subject   string `json:"subject"`
	Content   string `json:"content"`
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	ctrl, _ := s.session(w, r)
	s.respondJSON(w, http.StatusOK, s.me(ctrl))
}

func (s *Server) handleAPIConnect(w http.ResponseWriter, r *http.Request) {
	ctrl, ctx := s.session(w, r)
	if err := ctrl.Connect(ctx, s.connector); err != nil {
		if errors.Is(err, wallet.ErrNoProvider) {
			http.Error(w, "no wallet provider", http.StatusServiceUnavailable)
			return
		}
		http.Error(w, "unable to connect wallet", http.StatusBadGateway)
		return
	}
	s.respondJSON(w, http.StatusOK, s.me(ctrl))
}

func (s *Server) handleEmails(w http.ResponseWriter, r *http.Request) {
	ctrl, ctx := s.session(w, r)
	gw := ctrl.Gateway()
	if gw == nil {
		http.Error(w, "wallet not connected", http.StatusUnauthorized)
		return
	}
	box := r.URL.Query().Get("box")
	if box == "" {
		box = "inbox"
	}

	var (
		emails []mailbox.EmailMetadata
		err    error
	)
	switch box {
	case "inbox":
		emails, err = gw.GetUserEmails(ctx, gw.Account())
	case "sent":
		emails, err = gw.GetSentEmails(ctx, gw.Account())
	default:
		http.Error(w, "invalid box", http.StatusBadRequest)
		return
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "list emails", "box", box, "error", err)
		http.Error(w, "unable to load emails", http.StatusBadGateway)
		return
	}

	response := struct {
		Emails []emailView `json:"emails"`
	}{Emails: make([]emailView, 0, len(emails))}
	for _, e := range emails {
		response.Emails = append(response.Emails, toEmailView(e))
	}
	s.respondJSON(w, http.StatusOK, response)
}

func (s *Server) handleEmailDetails(w http.ResponseWriter, r *http.Request) {
	id, ok := emailID(w, r)
	if !ok {
		return
	}
	ctrl, ctx := s.session(w, r)
	gw := ctrl.Gateway()
	if gw == nil {
		http.Error(w, "wallet not connected", http.StatusUnauthorized)
		return
	}
	email, err := gw.GetEmailDetails(ctx, id)
	if err != nil {
		s.logger.ErrorContext(ctx, "email details", "email_id", id, "error", err)
		http.Error(w, contract.Reason(err), http.StatusBadGateway)
		return
	}
	s.respondJSON(w, http.StatusOK, toEmailView(email))
}

func (s *Server) handleAPIMarkRead(w http.ResponseWriter, r *http.Request) {
	id, ok := emailID(w, r)
	if !ok {
		return
	}
	ctrl, ctx := s.session(w, r)
	s.respondMutation(w, ctrl.MarkRead(ctx, id))
}

func (s *Server) handleAPIDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := emailID(w, r)
	if !ok {
		return
	}
	ctrl, ctx := s.session(w, r)
	s.respondMutation(w, ctrl.Delete(ctx, id))
}

func (s *Server) respondMutation(w http.ResponseWriter, err error) {
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, app.ErrNotConnected):
		http.Error(w, "wallet not connected", http.StatusUnauthorized)
	default:
		http.Error(w, contract.Reason(err), http.StatusBadGateway)
	}
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	ctrl, ctx := s.session(w, r)
	var payload sendRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	ctrl.SetDraft(app.Draft{Recipient: payload.Recipient, Subject: payload.Subject, Content: payload.Content})

	id, err := ctrl.Send(ctx)
	switch {
	case err == nil:
		s.respondJSON(w, http.StatusOK, map[string]uint64{"emailId": id})
	case errors.Is(err, app.ErrNotConnected):
		http.Error(w, "wallet not connected", http.StatusUnauthorized)
	case errors.Is(err, gateway.ErrMissingFields):
		http.Error(w, app.StatusFillAllFields, http.StatusBadRequest)
	case errors.Is(err, gateway.ErrConfidentialDisabled):
		http.Error(w, err.Error(), http.StatusNotImplemented)
	default:
		http.Error(w, contract.Reason(err), http.StatusBadGateway)
	}
}

func (s *Server) handleTotal(w http.ResponseWriter, r *http.Request) {
	ctrl, ctx := s.session(w, r)
	gw := ctrl.Gateway()
	if gw == nil {
		http.Error(w, "wallet not connected", http.StatusUnauthorized)
		return
	}
	total, err := gw.GetTotalEmails(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "total emails", "error", err)
		http.Error(w, "unable to load total", http.StatusBadGateway)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]uint64{"total": total})
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	ctrl, ctx := s.session(w, r)
	account := ctrl.Snapshot().Account
	if account == "" {
		http.Error(w, "wallet not connected", http.StatusUnauthorized)
		return
	}
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = min(parsed, 500)
		}
	}

	response := struct {
		Transactions []transactionView `json:"transactions"`
	}{Transactions: []transactionView{}}
	if s.journal != nil {
		txs, err := s.journal.ListTransactions(ctx, account, limit)
		if err != nil {
			s.logger.ErrorContext(ctx, "list transactions", "error", err)
			http.Error(w, "unable to list transactions", http.StatusInternalServerError)
			return
		}
		for _, tx := range txs {
			response.Transactions = append(response.Transactions, toTransactionView(tx))
		}
	}
	s.respondJSON(w, http.StatusOK, response)
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	ctrl, _ := s.session(w, r)
	account := ctrl.Snapshot().Account
	if account == "" {
		http.Error(w, "wallet not connected", http.StatusUnauthorized)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, unsubscribe := s.hub.Subscribe(account)
	defer unsubscribe()

	_, _ = w.Write([]byte("event: ready\ndata: {}\n\n"))
	flusher.Flush()

	ticker := time.NewTicker(20 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case payload, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(payload)
			flusher.Flush()
		case <-ticker.C:
			_, _ = w.Write([]byte(": ping\n\n"))
			flusher.Flush()
		}
	}
}

func (s *Server) me(ctrl *app.Controller) meResponse {
	state := ctrl.Snapshot()
	demo := s.cfg.DemoMode
	if gw := ctrl.Gateway(); gw != nil {
		demo = gw.DemoMode()
	}
	return meResponse{
		Account:   state.Account,
		Connected: state.Connected(),
		Tab:       string(state.Tab),
		Status:    state.Status,
		DemoMode:  demo,
	}
}

func toEmailView(e mailbox.EmailMetadata) emailView {
	return emailView{
		ID:          e.ID,
		Subject:     e.Subject,
		Timestamp:   e.Timestamp,
		Time:        mailbox.FormatTimestamp(e.Timestamp),
		State:       uint8(e.State),
		StateText:   e.State.String(),
		StateColor:  e.State.Color(),
		Sender:      e.Sender,
		Recipient:   e.Recipient,
		CanMarkRead: e.CanMarkRead(),
		CanDelete:   e.CanDelete(),
	}
}

func toTransactionView(tx store.Transaction) transactionView {
	return transactionView{
		ID:        tx.ID,
		Method:    tx.Method,
		EmailID:   tx.EmailID,
		TxHash:    tx.TxHash,
		Status:    string(tx.Status),
		Error:     tx.Error,
		CreatedAt: tx.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: tx.UpdatedAt.UTC().Format(time.RFC3339),
	}
}
