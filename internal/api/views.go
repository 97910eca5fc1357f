package api

import (
	"bytes"
	"html/template"
	"net/http"
	"strconv"

	"github.io/infrasutra/chainmail/internal/app"
	"github.io/infrasutra/chainmail/internal/mailbox"
)

var templateFuncs = template.FuncMap{
	"formatAddress":   mailbox.FormatAddress,
	"formatTimestamp": mailbox.FormatTimestamp,
	"actions":         newEmailActions,
}

type pageData struct {
	Base     string
	State    app.State
	DemoMode bool
}

// emailActions is what the per-item action block renders. Mark Read is only
// ever offered to the recipient, so only inbox items carry it.
type emailActions struct {
	Base     string
	Email    mailbox.EmailMetadata
	MarkRead bool
}

func newEmailActions(base string, email mailbox.EmailMetadata, inbox bool) emailActions {
	return emailActions{Base: base, Email: email, MarkRead: inbox && email.CanMarkRead()}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	ctrl, ctx := s.session(w, r)
	data := pageData{
		Base:     s.base,
		State:    ctrl.Snapshot(),
		DemoMode: s.cfg.DemoMode,
	}
	if gw := ctrl.Gateway(); gw != nil {
		data.DemoMode = gw.DemoMode()
	}

	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, "index.html", data); err != nil {
		s.logger.ErrorContext(ctx, "render page", "error", err)
		http.Error(w, "unable to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = buf.WriteTo(w)
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	ctrl, ctx := s.session(w, r)
	_ = ctrl.Connect(ctx, s.connector)
	s.redirectHome(w, r)
}

func (s *Server) handleTab(w http.ResponseWriter, r *http.Request) {
	ctrl, _ := s.session(w, r)
	ctrl.SetTab(app.ParseTab(r.PostFormValue("tab")))
	s.redirectHome(w, r)
}

func (s *Server) handleCompose(w http.ResponseWriter, r *http.Request) {
	ctrl, ctx := s.session(w, r)
	ctrl.SetDraft(app.Draft{
		Recipient: r.PostFormValue("recipient"),
		Subject:   r.PostFormValue("subject"),
		Content:   r.PostFormValue("content"),
	})
	_, _ = ctrl.Send(ctx)
	s.redirectHome(w, r)
}

func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	id, ok := emailID(w, r)
	if !ok {
		return
	}
	ctrl, ctx := s.session(w, r)
	_ = ctrl.MarkRead(ctx, id)
	s.redirectHome(w, r)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := emailID(w, r)
	if !ok {
		return
	}
	ctrl, ctx := s.session(w, r)
	_ = ctrl.Delete(ctx, id)
	s.redirectHome(w, r)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	ctrl, ctx := s.session(w, r)
	ctrl.Reload(ctx)
	s.redirectHome(w, r)
}

func (s *Server) redirectHome(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, s.base, http.StatusSeeOther)
}

func emailID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid email id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}
