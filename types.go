package accounts

import (
	"fmt"
	"strings"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Config holds account lifecycle options
type Config interface {
	GetBaseURL() string
	GetDefaultLangKey() string
	GetSupportedLangKeys() []string
	GetResetKeyValidity() string
	GetPasswordMinLength() int
	GetMailSender() string
}

// SimpleConfig is a plain Config implementation with sane defaults.
type SimpleConfig struct {
	BaseURL           string
	DefaultLangKey    string
	SupportedLangKeys []string
	ResetKeyValidity  string
	PasswordMinLength int
	MailSender        string
}

func (c SimpleConfig) GetBaseURL() string {
	return strings.TrimSuffix(c.BaseURL, "/")
}

func (c SimpleConfig) GetDefaultLangKey() string {
	if c.DefaultLangKey == "" {
		return "en"
	}
	return c.DefaultLangKey
}

func (c SimpleConfig) GetSupportedLangKeys() []string {
	if len(c.SupportedLangKeys) == 0 {
		return []string{"en", "ru"}
	}
	return c.SupportedLangKeys
}

// GetResetKeyValidity returns the reset window as a duration pattern, e.g. "24h"
func (c SimpleConfig) GetResetKeyValidity() string {
	if c.ResetKeyValidity == "" {
		return "24h"
	}
	return c.ResetKeyValidity
}

func (c SimpleConfig) GetPasswordMinLength() int {
	if c.PasswordMinLength <= 0 {
		return 8
	}
	return c.PasswordMinLength
}

func (c SimpleConfig) GetMailSender() string {
	return c.MailSender
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] ACCOUNTS "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] ACCOUNTS "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] ACCOUNTS "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] ACCOUNTS "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
