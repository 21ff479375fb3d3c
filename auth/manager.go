package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-contacts/avatar"
)

// Accounts is the account lifecycle manager. It owns the cross-cutting
// invariants; every collaborator it composes is a stateless utility or a
// single-purpose store.
type Accounts struct {
	repo            RepositoryManager
	tokens          TokenService
	mailer          Mailer
	avatars         AvatarStore
	logger          Logger
	dispatchTimeout time.Duration
}

// AccountsOption configures the manager.
type AccountsOption func(*Accounts)

// WithLogger overrides the default logger.
func WithLogger(logger Logger) AccountsOption {
	return func(a *Accounts) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithAvatarStore wires the avatar pipeline used by UpdateAvatar.
func WithAvatarStore(store AvatarStore) AccountsOption {
	return func(a *Accounts) {
		a.avatars = store
	}
}

// WithDispatchTimeout bounds how long a notification dispatch may run once
// it leaves the request path.
func WithDispatchTimeout(d time.Duration) AccountsOption {
	return func(a *Accounts) {
		if d > 0 {
			a.dispatchTimeout = d
		}
	}
}

// NewAccounts will create a new lifecycle manager.
func NewAccounts(repo RepositoryManager, tokens TokenService, mailer Mailer, opts ...AccountsOption) *Accounts {
	a := &Accounts{
		repo:            repo,
		tokens:          tokens,
		mailer:          mailer,
		logger:          defLogger{},
		dispatchTimeout: 10 * time.Second,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}

	return a
}

// RegisterInput carries the registration payload. The plaintext password is
// hashed before anything is persisted and never stored or logged.
type RegisterInput struct {
	Email        string
	Password     string
	Subscription string
}

// Register creates an unverified user with a fresh verification token and a
// deterministic default avatar reference, then dispatches the verification
// notification off the response path. Dispatch failure does not roll the
// account back.
func (a *Accounts) Register(ctx context.Context, in RegisterInput) (*Profile, error) {
	if in.Email == "" || in.Password == "" {
		return nil, ErrMissingFields
	}

	subscription, err := ParseSubscription(in.Subscription)
	if err != nil {
		return nil, err
	}

	// Fast path for a friendly error; the unique index on users.email is
	// what actually guarantees exactly one winner under races.
	if _, err := a.repo.Users().GetByEmail(ctx, in.Email); err == nil {
		return nil, ErrEmailInUse
	} else if !repository.IsRecordNotFound(err) {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check existing email")
	}

	user := &User{}

	err = a.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		hash, err := HashPassword(in.Password)
		if err != nil {
			return err
		}

		user.Email = in.Email
		user.PasswordHash = hash
		user.Subscription = subscription
		user.AvatarURL = avatar.GravatarURL(in.Email)
		user.Verified = false
		user.VerificationToken = NewVerificationToken()
		if id, err := hashid.NewUUID(in.Email); err == nil {
			user.ID = id
		}

		if user, err = a.repo.Users().RegisterTx(ctx, tx, user); err != nil {
			return err
		}
		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return nil, richErr
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "user registration failed")
	}

	a.dispatchVerification(user.Email, user.VerificationToken)

	profile := user.Profile()
	return &profile, nil
}

// VerifyByToken consumes a verification token. Consumption is single-use:
// once cleared, re-presenting the same token yields not-found, which is the
// terminal behavior.
func (a *Accounts) VerifyByToken(ctx context.Context, token string) error {
	if token == "" {
		return ErrVerificationNotFound
	}

	user, err := a.repo.Users().ConsumeVerificationToken(ctx, token)
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "verification failed")
	}

	a.logger.Info("email verified", "email", user.Email)
	return nil
}

// ResendVerification re-dispatches the stored verification token. Unknown
// email and already-verified both surface as the same generic client error
// so the endpoint cannot be used to probe registered emails.
func (a *Accounts) ResendVerification(ctx context.Context, email string) error {
	if email == "" {
		return ErrMissingFields
	}

	user, err := a.repo.Users().GetByEmail(ctx, email)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return ErrVerificationResend
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load user for resend")
	}

	// A verified account has no token left; by construction this branch also
	// keeps the dispatch path unreachable for verified users.
	if user.Verified || user.VerificationToken == "" {
		return ErrVerificationResend
	}

	a.dispatchVerification(user.Email, user.VerificationToken)
	return nil
}

// Login validates credentials, requires a verified account, issues a session
// token, and mirrors it onto the user record, overwriting any prior token.
func (a *Accounts) Login(ctx context.Context, email, password string) (string, *Profile, error) {
	if email == "" || password == "" {
		return "", nil, ErrMissingFields
	}

	user, err := a.repo.Users().GetByEmail(ctx, email)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			// Unknown email and wrong password collapse to one error.
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load user for login")
	}

	if err := ComparePasswordAndHash(password, user.PasswordHash); err != nil {
		if goerrors.Is(err, ErrInvalidCredentials) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, err
	}

	if !user.Verified {
		return "", nil, ErrEmailNotVerified
	}

	token, err := a.tokens.Generate(user)
	if err != nil {
		return "", nil, err
	}

	if err := a.repo.Users().SetSessionToken(ctx, user.ID, token); err != nil {
		return "", nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist session token")
	}

	profile := user.Profile()
	return token, &profile, nil
}

// Logout clears the stored session token. Idempotent.
func (a *Accounts) Logout(ctx context.Context, userID uuid.UUID) error {
	if err := a.repo.Users().ClearSessionToken(ctx, userID); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to clear session token")
	}
	return nil
}

// CurrentUser resolves an authenticated identity to its public profile.
func (a *Accounts) CurrentUser(ctx context.Context, userID uuid.UUID) (*Profile, error) {
	user, err := a.repo.Users().GetUser(ctx, userID)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load user")
	}

	profile := user.Profile()
	return &profile, nil
}

// Authenticate resolves a raw bearer token to a user. A token that still
// validates cryptographically but no longer matches the stored copy is
// treated as revoked.
func (a *Accounts) Authenticate(ctx context.Context, raw string) (*User, error) {
	if raw == "" {
		return nil, ErrNotAuthorized
	}

	claims, err := a.tokens.Validate(raw)
	if err != nil {
		return nil, err
	}

	id, err := claims.UserID()
	if err != nil {
		return nil, ErrTokenMalformed
	}

	user, err := a.repo.Users().GetUser(ctx, id)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrNotAuthorized
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to resolve session user")
	}

	if user.SessionToken != raw {
		return nil, ErrNotAuthorized
	}

	return user, nil
}

// UpdateAvatar relocates the uploaded file into durable storage, normalizes
// it, and persists the new reference. The pipeline releases the temporary
// file on every exit path.
func (a *Accounts) UpdateAvatar(ctx context.Context, userID uuid.UUID, tempPath, originalName string) (string, error) {
	if a.avatars == nil {
		return "", goerrors.New("avatar store not configured", goerrors.CategoryInternal)
	}

	avatarURL, err := a.avatars.Store(ctx, userID.String(), tempPath, originalName)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to store avatar")
	}

	if err := a.repo.Users().SetAvatarURL(ctx, userID, avatarURL); err != nil {
		if repository.IsRecordNotFound(err) {
			return "", ErrUserNotFound
		}
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist avatar reference")
	}

	return avatarURL, nil
}

// dispatchVerification fires the notification on its own goroutine with its
// own timeout; failures are logged, never propagated to the caller.
func (a *Accounts) dispatchVerification(email, token string) {
	if a.mailer == nil {
		a.logger.Warn("no mailer configured, skipping verification dispatch", "email", email)
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), a.dispatchTimeout)
		defer cancel()

		if err := a.mailer.SendVerification(ctx, email, token); err != nil {
			a.logger.Error("verification dispatch failed", "email", email, "error", err)
			return
		}
		a.logger.Debug("verification dispatched", "email", email)
	}()
}
