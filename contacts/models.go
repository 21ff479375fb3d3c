// Package contacts implements the contact-record CRUD resource. It has no
// relationship to the user entity; it exists to complete the API surface.
package contacts

import (
	"errors"
	"time"

	"github.com/nyaruka/phonenumbers"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// DefaultPhoneRegion is assumed for numbers submitted without a country
// prefix.
const DefaultPhoneRegion = "US"

// Contact is the contact model
type Contact struct {
	bun.BaseModel `bun:"table:contacts,alias:cnt"`

	ID        uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Name      string     `bun:"name,notnull" json:"name"`
	Email     string     `bun:"email,notnull" json:"email"`
	Phone     string     `bun:"phone,notnull" json:"phone"`
	CreatedAt *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// PhoneNumber is an ozzo-compatible rule checking the value parses as a
// plausible phone number.
func PhoneNumber(value any) error {
	s, _ := value.(string)
	if s == "" {
		// Required-ness is a separate rule.
		return nil
	}

	num, err := phonenumbers.Parse(s, DefaultPhoneRegion)
	if err != nil {
		return errors.New("must be a valid phone number")
	}
	if !phonenumbers.IsPossibleNumber(num) {
		return errors.New("must be a valid phone number")
	}
	return nil
}
