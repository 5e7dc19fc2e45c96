package domain

import (
	"fmt"
	"time"
)

// RecoveryMethod selects which factors the password recovery wizard requires.
type RecoveryMethod string

const (
	// MethodQuestion requires only the security answer.
	MethodQuestion RecoveryMethod = "question"
	// MethodQuestionOTP requires an emailed one-time code before the answer.
	MethodQuestionOTP RecoveryMethod = "question_otp"
)

// ParseRecoveryMethod converts configuration text into a RecoveryMethod.
func ParseRecoveryMethod(s string) (RecoveryMethod, error) {
	switch RecoveryMethod(s) {
	case MethodQuestion, MethodQuestionOTP:
		return RecoveryMethod(s), nil
	}
	return "", fmt.Errorf("unknown recovery method %q", s)
}

// RecoveryStep is the state of a recovery session.
type RecoveryStep string

const (
	StepAwaitingEmail       RecoveryStep = "awaiting_email"
	StepAwaitingCode        RecoveryStep = "awaiting_code"
	StepAwaitingAnswer      RecoveryStep = "awaiting_answer"
	StepAwaitingNewPassword RecoveryStep = "awaiting_new_password"
	StepDone                RecoveryStep = "done"
)

// recoveryTransitions defines the allowed wizard transitions per method.
var recoveryTransitions = map[RecoveryMethod]map[RecoveryStep][]RecoveryStep{
	MethodQuestion: {
		StepAwaitingEmail:       {StepAwaitingAnswer},
		StepAwaitingAnswer:      {StepAwaitingNewPassword},
		StepAwaitingNewPassword: {StepDone},
	},
	MethodQuestionOTP: {
		StepAwaitingEmail:       {StepAwaitingCode},
		StepAwaitingCode:        {StepAwaitingAnswer},
		StepAwaitingAnswer:      {StepAwaitingNewPassword},
		StepAwaitingNewPassword: {StepDone},
	},
}

// CanTransitionTo reports whether method m allows moving from s to next.
func (m RecoveryMethod) CanTransitionTo(s, next RecoveryStep) bool {
	for _, allowed := range recoveryTransitions[m][s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// RecoverySession tracks one password recovery attempt. It lives inside the
// owning Session and is discarded on completion or cancellation.
type RecoverySession struct {
	Method      RecoveryMethod `json:"method"`
	Step        RecoveryStep   `json:"step"`
	TargetEmail string         `json:"target_email,omitempty"`
	Question    string         `json:"question,omitempty"`
	StartedAt   time.Time      `json:"started_at"`

	// One-time code state, only populated for MethodQuestionOTP.
	CodeHash      string    `json:"code_hash,omitempty"`
	CodeSalt      string    `json:"code_salt,omitempty"`
	CodeIssuedAt  time.Time `json:"code_issued_at,omitempty"`
	CodeExpiresAt time.Time `json:"code_expires_at,omitempty"`
	CodeAttempts  int       `json:"code_attempts,omitempty"`
}

// NewRecoverySession returns a session in the initial AwaitingEmail step.
func NewRecoverySession(method RecoveryMethod, now time.Time) *RecoverySession {
	return &RecoverySession{Method: method, Step: StepAwaitingEmail, StartedAt: now}
}

// Advance moves the session to next, failing with ErrInvalidStep when the
// method does not allow it.
func (r *RecoverySession) Advance(next RecoveryStep) error {
	if !r.Method.CanTransitionTo(r.Step, next) {
		return fmt.Errorf("%w (from %s to %s)", ErrInvalidStep, r.Step, next)
	}
	r.Step = next
	return nil
}

// CodeExpired reports whether the issued code is no longer valid at now.
// A code is valid while now <= CodeExpiresAt.
func (r *RecoverySession) CodeExpired(now time.Time) bool {
	return now.After(r.CodeExpiresAt)
}

func (r *RecoverySession) clearCode() {
	r.CodeHash = ""
	r.CodeSalt = ""
	r.CodeIssuedAt = time.Time{}
	r.CodeExpiresAt = time.Time{}
}

// MarkCodeVerified drops the stored code once it has been accepted.
func (r *RecoverySession) MarkCodeVerified() {
	r.clearCode()
	r.CodeAttempts = 0
}
