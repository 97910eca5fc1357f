// Package smtpserver accepts mail from ordinary SMTP clients and relays it
// on chain as plaintext emails. Recipients are addressed as
// <0xaccount>@<domain>.
package smtpserver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"slices"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"github.com/ethereum/go-ethereum/common"

	"github.io/infrasutra/chainmail/internal/contract"
)

const (
	defaultDomain  = "chainmail"
	defaultSubject = "(no subject)"
)

// Sender submits one plaintext email; gateway.Gateway implements it.
type Sender interface {
	SendPlainEmail(ctx context.Context, recipient, subject, content string) (uint64, error)
}

type AuthConfig struct {
	Enabled  bool
	Username string
	Password string
}

type Server struct {
	smtp   *smtp.Server
	logger *slog.Logger
}

func New(sender Sender, logger *slog.Logger, addr, domain string, authCfg AuthConfig) *Server {
	domain = strings.ToLower(strings.TrimSpace(domain))
	if domain == "" {
		domain = defaultDomain
	}
	backend := &backend{
		sender:       sender,
		logger:       logger,
		domain:       domain,
		authEnabled:  authCfg.Enabled,
		authUsername: authCfg.Username,
		authPassword: authCfg.Password,
	}
	server := smtp.NewServer(backend)
	server.Addr = addr
	server.Domain = domain
	server.AllowInsecureAuth = true
	server.ReadTimeout = 15 * time.Second
	server.WriteTimeout = 15 * time.Second
	// One recipient per message: an accepted message is one on-chain email.
	server.MaxRecipients = 1
	server.MaxMessageBytes = 1 << 20

	return &Server{smtp: server, logger: logger}
}

func (s *Server) ListenAndServe() error {
	s.logger.Info("smtp relay listening", "addr", s.smtp.Addr)
	return s.smtp.ListenAndServe()
}

func (s *Server) Serve(l net.Listener) error {
	s.logger.Info("smtp relay listening", "addr", l.Addr().String())
	return s.smtp.Serve(l)
}

func (s *Server) Close() error {
	return s.smtp.Close()
}

type backend struct {
	sender       Sender
	logger       *slog.Logger
	domain       string
	authEnabled  bool
	authUsername string
	authPassword string
}

func (b *backend) NewSession(_ *smtp.Conn) (smtp.Session, error) {
	return &session{backend: b}, nil
}

type session struct {
	backend       *backend
	from          string
	to            []string
	authenticated bool
}

func (s *session) AuthMechanisms() []string {
	if s.backend.authEnabled {
		return []string{sasl.Plain}
	}
	return nil
}

func (s *session) Auth(mech string) (sasl.Server, error) {
	if !s.backend.authEnabled {
		return nil, errors.New("authentication not enabled")
	}
	if mech != sasl.Plain {
		return nil, errors.New("unsupported authentication mechanism")
	}
	return sasl.NewPlainServer(func(identity, username, password string) error {
		if username == s.backend.authUsername && password == s.backend.authPassword {
			s.authenticated = true
			return nil
		}
		return errors.New("invalid credentials")
	}), nil
}

func (s *session) Mail(from string, _ *smtp.MailOptions) error {
	if s.backend.authEnabled && !s.authenticated {
		return smtp.ErrAuthRequired
	}
	s.from = strings.TrimSpace(strings.ToLower(from))
	return nil
}

func (s *session) Rcpt(to string, _ *smtp.RcptOptions) error {
	if s.backend.authEnabled && !s.authenticated {
		return smtp.ErrAuthRequired
	}
	account, err := accountFromAddress(to, s.backend.domain)
	if err != nil {
		return &smtp.SMTPError{
			Code:         550,
			EnhancedCode: smtp.EnhancedCode{5, 1, 1},
			Message:      err.Error(),
		}
	}
	if slices.Contains(s.to, account) {
		return nil
	}
	if len(s.to) > 0 {
		return &smtp.SMTPError{
			Code:         452,
			EnhancedCode: smtp.EnhancedCode{4, 5, 3},
			Message:      "one recipient per message",
		}
	}
	s.to = append(s.to, account)
	return nil
}

func (s *session) Data(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	subject, content, err := parseMessage(data)
	if err != nil {
		s.backend.logger.Warn("parse smtp message", "from", s.from, "error", err)
	}
	if content == "" {
		return &smtp.SMTPError{
			Code:         554,
			EnhancedCode: smtp.EnhancedCode{5, 6, 0},
			Message:      "message has no text body",
		}
	}

	if len(s.to) == 0 {
		return &smtp.SMTPError{
			Code:         554,
			EnhancedCode: smtp.EnhancedCode{5, 5, 1},
			Message:      "no valid recipients",
		}
	}

	recipient := s.to[0]
	id, err := s.backend.sender.SendPlainEmail(context.Background(), recipient, subject, content)
	if err != nil {
		s.backend.logger.Error("relay email", "from", s.from, "recipient", recipient, "error", err)
		return &smtp.SMTPError{
			Code:         554,
			EnhancedCode: smtp.EnhancedCode{5, 3, 0},
			Message:      "relay failed: " + contract.Reason(err),
		}
	}
	s.backend.logger.Info("relayed email", "from", s.from, "recipient", recipient, "email_id", id)
	return nil
}

func (s *session) Reset() {
	s.from = ""
	s.to = nil
}

func (s *session) Logout() error {
	return nil
}

// accountFromAddress extracts the lowercase account from <0xaccount>@domain.
func accountFromAddress(address, domain string) (string, error) {
	address = strings.Trim(strings.TrimSpace(address), "<>")
	local, host, ok := strings.Cut(address, "@")
	if !ok || !strings.EqualFold(host, domain) {
		return "", fmt.Errorf("recipient must be <0xaddress>@%s", domain)
	}
	if !common.IsHexAddress(local) || !strings.HasPrefix(strings.ToLower(local), "0x") {
		return "", fmt.Errorf("recipient %q is not an account address", local)
	}
	return strings.ToLower(local), nil
}

// parseMessage returns the subject and the concatenated text/plain parts.
// A parse failure still returns whatever was read before it.
func parseMessage(raw []byte) (string, string, error) {
	subject := defaultSubject
	reader, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return subject, "", err
	}
	if s, err := reader.Header.Subject(); err == nil && strings.TrimSpace(s) != "" {
		subject = strings.TrimSpace(s)
	}

	var parts []string
	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return subject, joinBody(parts), err
		}
		header, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		mediaType, _, _ := header.ContentType()
		if mediaType != "" && !strings.HasPrefix(mediaType, "text/plain") {
			continue
		}
		body, err := io.ReadAll(part.Body)
		if err != nil {
			continue
		}
		parts = append(parts, string(body))
	}
	return subject, joinBody(parts), nil
}

func joinBody(parts []string) string {
	body := strings.Join(parts, "\n")
	body = strings.ReplaceAll(body, "\r\n", "\n")
	return strings.TrimSpace(body)
}
