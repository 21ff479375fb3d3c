package auth

import (
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Subscription is the user's subscription tier
type Subscription = string

const (
	// SubscriptionStarter is the free tier and the default for new accounts
	SubscriptionStarter Subscription = "starter"
	// SubscriptionPro is the paid tier
	SubscriptionPro Subscription = "pro"
	// SubscriptionBusiness is the team tier
	SubscriptionBusiness Subscription = "business"
)

// ParseSubscription normalizes a requested tier. An empty value resolves to
// the starter default; anything else must be a known tier.
func ParseSubscription(s string) (Subscription, error) {
	switch s {
	case "":
		return SubscriptionStarter, nil
	case SubscriptionStarter, SubscriptionPro, SubscriptionBusiness:
		return s, nil
	}
	return "", goerrors.New("unknown subscription tier", goerrors.CategoryValidation).
		WithTextCode("INVALID_SUBSCRIPTION").
		WithCode(goerrors.CodeBadRequest).
		WithMetadata(map[string]any{"subscription": s})
}

// User is the user model. Password hash and both token columns never leave
// the process in a response body.
type User struct {
	bun.BaseModel `bun:"table:users,alias:usr"`

	ID                uuid.UUID    `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Email             string       `bun:"email,notnull,unique" json:"email,omitempty"`
	PasswordHash      string       `bun:"password_hash,notnull" json:"-"`
	Subscription      Subscription `bun:"subscription,notnull" json:"subscription,omitempty"`
	AvatarURL         string       `bun:"avatar_url" json:"avatar_url,omitempty"`
	Verified          bool         `bun:"is_verified" json:"is_verified"`
	VerificationToken string       `bun:"verification_token" json:"-"`
	SessionToken      string       `bun:"session_token" json:"-"`
	CreatedAt         *time.Time   `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt         *time.Time   `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// Profile is the public projection of a User.
type Profile struct {
	Email        string       `json:"email"`
	Subscription Subscription `json:"subscription"`
}

// Profile returns the public projection for the user.
func (u *User) Profile() Profile {
	return Profile{
		Email:        u.Email,
		Subscription: u.Subscription,
	}
}

// HasSession reports whether a session token is currently stored.
func (u *User) HasSession() bool {
	return u.SessionToken != ""
}
