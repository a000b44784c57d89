package accounts

import (
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"golang.org/x/text/language"
)

// loginPattern restricts logins to lowercase letters, digits, and a small set
// of separators. Logins are normalized to lowercase before validation.
var loginPattern = regexp.MustCompile(`^[a-z0-9._-]+$`)

// Policy holds the configurable validation rules for account fields.
type Policy struct {
	PasswordMinLength int
}

// NewPolicy builds a Policy from the configuration surface.
func NewPolicy(cfg Config) Policy {
	min := 8
	if cfg != nil {
		min = cfg.GetPasswordMinLength()
	}
	return Policy{PasswordMinLength: min}
}

// ValidateLogin checks length and character set. Expects a normalized login.
func (p Policy) ValidateLogin(login string) error {
	err := validation.Validate(login,
		validation.Required,
		validation.Length(3, 20),
		validation.Match(loginPattern),
	)
	if err != nil {
		return NewValidationError("login", err.Error())
	}
	return nil
}

// ValidateEmail checks shape (local@domain, dotted domain) and length.
func (p Policy) ValidateEmail(email string) error {
	err := validation.Validate(email,
		validation.Required,
		validation.Length(5, 100),
		is.Email,
	)
	if err != nil {
		return NewValidationError("email", err.Error())
	}

	at := strings.LastIndex(email, "@")
	if at < 0 || !strings.Contains(email[at+1:], ".") {
		return NewValidationError("email", "must have a dotted domain")
	}
	return nil
}

// ValidatePassword rejects empty/whitespace-only values and enforces the
// configured minimum length. The cleartext is never retained.
func (p Policy) ValidatePassword(password string) error {
	if strings.TrimSpace(password) == "" {
		return NewValidationError("password", "cannot be blank")
	}

	err := validation.Validate(password,
		validation.Required,
		validation.Length(p.PasswordMinLength, 100),
	)
	if err != nil {
		return NewValidationError("password", err.Error())
	}
	return nil
}

// NormalizeLogin lowercases and trims a login for comparison and storage.
func NormalizeLogin(login string) string {
	return strings.ToLower(strings.TrimSpace(login))
}

// NormalizeLangKey resolves a language tag against the configured supported
// set, falling back to the default key. Unsupported tags are not an error:
// notification language is best effort, unlike the hard-reject field rules.
func NormalizeLangKey(langKey string, cfg Config) string {
	supported := cfg.GetSupportedLangKeys()
	fallback := cfg.GetDefaultLangKey()

	langKey = strings.TrimSpace(langKey)
	if langKey == "" {
		return fallback
	}

	requested, err := language.Parse(langKey)
	if err != nil {
		return fallback
	}

	tags := make([]language.Tag, 0, len(supported))
	keys := make([]string, 0, len(supported))
	for _, key := range supported {
		tag, err := language.Parse(key)
		if err != nil {
			continue
		}
		tags = append(tags, tag)
		keys = append(keys, key)
	}
	if len(tags) == 0 {
		return fallback
	}

	_, idx, conf := language.NewMatcher(tags).Match(requested)
	if conf == language.No {
		return fallback
	}
	return keys[idx]
}
