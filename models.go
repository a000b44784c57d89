package accounts

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Account is the account model
type Account struct {
	bun.BaseModel `bun:"table:accounts,alias:acc"`
	ID            uuid.UUID   `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Login         string      `bun:"login,notnull,unique" json:"login,omitempty"`
	Email         string      `bun:"email,notnull,unique" json:"email,omitempty"`
	PasswordHash  string      `bun:"password_hash" json:"-"`
	FirstName     string      `bun:"first_name" json:"first_name,omitempty"`
	LastName      string      `bun:"last_name" json:"last_name,omitempty"`
	LangKey       string      `bun:"lang_key,notnull" json:"lang_key,omitempty"`
	Authorities   []Authority `bun:"authorities" json:"authorities,omitempty"`
	Activated     bool        `bun:"activated" json:"activated"`
	ActivationKey string      `bun:"activation_key,nullzero" json:"-"`
	ResetKey      string      `bun:"reset_key,nullzero" json:"-"`
	ResetDate     *time.Time  `bun:"reset_date,nullzero" json:"-"`
	RegisterDate  *time.Time  `bun:"register_date,nullzero,default:current_timestamp" json:"register_date,omitempty"`
	CreatedAt     *time.Time  `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time  `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt     *time.Time  `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// Profile is the public projection of an account. It carries everything a
// caller may see: no password hash, no activation or reset keys.
type Profile struct {
	ID           uuid.UUID   `json:"id,omitempty"`
	Login        string      `json:"login"`
	Email        string      `json:"email"`
	FirstName    string      `json:"first_name,omitempty"`
	LastName     string      `json:"last_name,omitempty"`
	LangKey      string      `json:"lang_key,omitempty"`
	Authorities  []Authority `json:"authorities,omitempty"`
	Activated    bool        `json:"activated"`
	RegisterDate *time.Time  `json:"register_date,omitempty"`
}

// Public returns the projection of the account safe to hand to callers.
func (a *Account) Public() Profile {
	if a == nil {
		return Profile{}
	}
	return Profile{
		ID:           a.ID,
		Login:        a.Login,
		Email:        a.Email,
		FirstName:    a.FirstName,
		LastName:     a.LastName,
		LangKey:      a.LangKey,
		Authorities:  append([]Authority(nil), a.Authorities...),
		Activated:    a.Activated,
		RegisterDate: a.RegisterDate,
	}
}

// HasAuthority reports whether the account carries the given authority.
func (a *Account) HasAuthority(authority Authority) bool {
	if a == nil {
		return false
	}
	for _, have := range a.Authorities {
		if strings.EqualFold(have, authority) {
			return true
		}
	}
	return false
}

// GrantAuthority appends an authority if not already present. This is the
// administrative mutation path; profile updates never touch authorities.
func (a *Account) GrantAuthority(authority Authority) *Account {
	if a.HasAuthority(authority) {
		return a
	}
	a.Authorities = append(a.Authorities, authority)
	return a
}
