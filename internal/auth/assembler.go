// File: internal/auth/assembler.go
package auth

import (
	"context"
	"fmt"
	"strings"

	"starterkit_backend/internal/session"
	"starterkit_backend/internal/user"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Trigger names the event that asked for a new token.
type Trigger string

const (
	TriggerSignIn Trigger = "signIn"
	TriggerSignUp Trigger = "signUp"
	TriggerUpdate Trigger = "update"
	TriggerNone   Trigger = ""
)

// Outcome records which branch of Assemble produced the token.
type Outcome string

const (
	OutcomeOAuthSignIn       Outcome = "oauth_sign_in"
	OutcomeCredentialsSignIn Outcome = "credentials_sign_in"
	OutcomeUpdated           Outcome = "updated"
	OutcomeEmptyUpdate       Outcome = "empty_update"
	OutcomeRefreshed         Outcome = "refreshed"
	// OutcomeOAuthInvalid and OutcomeReconcileFailed return the incoming
	// token unchanged; callers treat the sign-in as failed.
	OutcomeOAuthInvalid    Outcome = "oauth_invalid"
	OutcomeReconcileFailed Outcome = "reconcile_failed"
)

// Failed reports whether a sign-in did not produce an enriched token.
func (o Outcome) Failed() bool {
	return o == OutcomeOAuthInvalid || o == OutcomeReconcileFailed
}

// SignInUser is the user object handed over by a sign-in flow.
type SignInUser struct {
	ID    string
	Name  string
	Email string
	Image string
	Role  string
}

// ProviderAccount is present for provider (OAuth/OIDC) sign-ins only.
type ProviderAccount struct {
	Provider          string
	ProviderAccountID string
	Type              string
	AccessToken       string
}

// SessionUpdate is a partial user payload sent by the client. Nil fields are
// not touched. ID is accepted on the wire but never applied.
type SessionUpdate struct {
	ID      *string `json:"id,omitempty"`
	Name    *string `json:"name,omitempty" binding:"omitempty,max=255"`
	Email   *string `json:"email,omitempty" binding:"omitempty,email,max=255"`
	Picture *string `json:"picture,omitempty" binding:"omitempty,max=2048"`
	Image   *string `json:"image,omitempty" binding:"omitempty,max=2048"`
	Role    *string `json:"role,omitempty"`
}

// AssembleInput is one invocation of the token callback.
type AssembleInput struct {
	Token   *session.Token
	User    *SignInUser
	Account *ProviderAccount
	Trigger Trigger
	Update  *SessionUpdate
}

// Result is the next token plus how it was produced.
type Result struct {
	Token         *session.Token
	Outcome       Outcome
	CorrelationID string
}

// Assembler produces the next session token for a trigger.
type Assembler struct {
	reconciler SignInReconciler
	logger     *zap.Logger
}

// NewAssembler creates an Assembler.
func NewAssembler(reconciler SignInReconciler, logger *zap.Logger) *Assembler {
	return &Assembler{reconciler: reconciler, logger: logger.Named("TokenAssembler")}
}

// Assemble returns the next token. The input token is never modified. An
// error is returned only for a credentials sign-in without id or email.
func (a *Assembler) Assemble(ctx context.Context, in AssembleInput) (*Result, error) {
	res := &Result{Token: in.Token.Clone(), CorrelationID: uuid.NewString()}
	log := a.logger.With(zap.String("correlationId", res.CorrelationID), zap.String("trigger", string(in.Trigger)))

	switch {
	case (in.Trigger == TriggerSignIn || in.Trigger == TriggerSignUp) && in.Account != nil:
		a.oauthSignIn(ctx, in, res, log)
	case in.Trigger == TriggerSignIn || in.Trigger == TriggerSignUp:
		if err := a.credentialsSignIn(in, res); err != nil {
			log.Error("Credentials sign-in without identity", zap.Error(err))
			return nil, err
		}
	case in.Trigger == TriggerUpdate:
		a.update(in.Update, res, log)
	default:
		res.Token.EnsureJTI()
		res.Outcome = OutcomeRefreshed
	}

	log.Debug("Token assembled", zap.String("outcome", string(res.Outcome)), zap.String("sub", res.Token.Subject))
	return res, nil
}

func (a *Assembler) oauthSignIn(ctx context.Context, in AssembleInput, res *Result, log *zap.Logger) {
	if err := validateOAuthSignIn(in.User, in.Account); err != nil {
		log.Warn("OAuth sign-in rejected, token left unchanged", zap.Error(err))
		res.Outcome = OutcomeOAuthInvalid
		return
	}

	au := a.reconciler.Reconcile(ctx, SignInInput{
		Email:             in.User.Email,
		Profile:           Profile{ID: in.User.ID, Name: in.User.Name, Image: in.User.Image},
		Provider:          in.Account.Provider,
		ProviderAccountID: in.Account.ProviderAccountID,
		AccountType:       in.Account.Type,
		AccessToken:       in.Account.AccessToken,
		CorrelationID:     res.CorrelationID,
	})
	if au == nil {
		log.Warn("OAuth sign-in could not be reconciled, token left unchanged")
		res.Outcome = OutcomeReconcileFailed
		return
	}

	applyAuthUser(res.Token, au)
	res.Token.AccessToken = in.Account.AccessToken
	res.Token.Provider = in.Account.Provider
	res.Token.EnsureJTI()
	res.Outcome = OutcomeOAuthSignIn
}

func (a *Assembler) credentialsSignIn(in AssembleInput, res *Result) error {
	au, err := AuthUserFromSignIn(in.User)
	if err != nil {
		return err
	}
	applyAuthUser(res.Token, au)
	res.Token.AccessToken = ""
	res.Token.Provider = user.ProviderCredentials
	res.Token.EnsureJTI()
	res.Outcome = OutcomeCredentialsSignIn
	return nil
}

func (a *Assembler) update(upd *SessionUpdate, res *Result, log *zap.Logger) {
	t := res.Token
	changed := false
	if upd != nil {
		if upd.ID != nil && *upd.ID != t.Subject {
			log.Warn("Ignoring attempt to change token subject",
				zap.String("sub", t.Subject), zap.String("requested", *upd.ID))
		}
		if v, ok := nonEmpty(upd.Name); ok {
			t.Name = v
			changed = true
		}
		if v, ok := nonEmpty(upd.Email); ok {
			t.Email = user.NormalizeEmail(v)
			changed = true
		}
		if v, ok := nonEmpty(upd.Picture); ok {
			t.Picture = v
			changed = true
		} else if v, ok := nonEmpty(upd.Image); ok {
			t.Picture = v
			changed = true
		}
		if v, ok := nonEmpty(upd.Role); ok {
			if validRole(v) {
				t.Role = v
				changed = true
			} else {
				log.Warn("Ignoring unknown role in session update", zap.String("role", v))
			}
		}
	}

	t.RotateJTI()
	if changed {
		res.Outcome = OutcomeUpdated
	} else {
		res.Outcome = OutcomeEmptyUpdate
	}
}

func validateOAuthSignIn(u *SignInUser, acct *ProviderAccount) error {
	switch {
	case u == nil:
		return fmt.Errorf("missing user")
	case strings.TrimSpace(u.ID) == "":
		return fmt.Errorf("missing user id")
	case strings.TrimSpace(u.Email) == "":
		return fmt.Errorf("missing user email")
	case strings.TrimSpace(acct.Provider) == "":
		return fmt.Errorf("missing provider")
	case strings.TrimSpace(acct.ProviderAccountID) == "":
		return fmt.Errorf("missing provider account id")
	}
	return nil
}

func nonEmpty(p *string) (string, bool) {
	if p == nil {
		return "", false
	}
	v := strings.TrimSpace(*p)
	return v, v != ""
}
