package domain

import "time"

// SessionAccount is the logged-in account snapshot kept on a Session.
type SessionAccount struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	IsAdmin  bool   `json:"is_admin"`
}

// Session is the per-client state: which account is current, and which
// recovery attempt (if any) is in progress.
type Session struct {
	ID        string           `json:"id"`
	Account   *SessionAccount  `json:"account,omitempty"`
	Recovery  *RecoverySession `json:"recovery,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
	ExpiresAt time.Time        `json:"expires_at"`
}

// Authenticated reports whether an account is logged in on this session.
func (s *Session) Authenticated() bool {
	return s != nil && s.Account != nil
}

// LoginSuccess records acc as the current account and abandons any recovery.
func (s *Session) LoginSuccess(acc *Account) {
	s.Account = &SessionAccount{
		ID:       acc.ID,
		Username: acc.Username,
		Email:    acc.Email,
		IsAdmin:  acc.IsAdmin,
	}
	s.Recovery = nil
}

// Logout clears the current account and all transient state.
func (s *Session) Logout() {
	s.Account = nil
	s.Recovery = nil
}

// Notice is an asynchronous account notification.
type Notice struct {
	Kind  NoticeKind
	Email string
	At    time.Time
}

// NoticeKind identifies the notification template.
type NoticeKind string

const NoticePasswordChanged NoticeKind = "password_changed"
