package accounts

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gofiber/template/django/v3"
	goerrors "github.com/goliatone/go-errors"
)

// MailEvent names a lifecycle transition that triggers a notification.
type MailEvent string

const (
	// MailEventActivation is sent on self-service registration
	MailEventActivation MailEvent = "activation"
	// MailEventCreation is sent for accounts created by an administrator
	MailEventCreation MailEvent = "creation"
	// MailEventPasswordReset is sent when a reset key is issued
	MailEventPasswordReset MailEvent = "password_reset"
)

// Mail is a fully rendered message ready for a Transport.
type Mail struct {
	From    string
	To      string
	Subject string
	Body    string
	HTML    bool
}

// Transport delivers a rendered mail. Failures are reported back but never
// escalate into lifecycle failures.
type Transport interface {
	Send(ctx context.Context, mail Mail) error
}

// TransportFunc adapts a function to the Transport interface.
type TransportFunc func(ctx context.Context, mail Mail) error

// Send implements Transport.
func (f TransportFunc) Send(ctx context.Context, mail Mail) error {
	if f == nil {
		return nil
	}
	return f(ctx, mail)
}

// TemplateRenderer matches the render surface of fiber template engines.
type TemplateRenderer interface {
	Render(out io.Writer, template string, binding any, layout ...string) error
}

// Mailer resolves locale, renders, and dispatches lifecycle notifications.
type Mailer interface {
	Notify(ctx context.Context, account *Account, event MailEvent) error
}

//go:embed templates
var templatesFS embed.FS

// NewMailTemplateEngine loads the embedded per-event, per-locale templates.
func NewMailTemplateEngine() (TemplateRenderer, error) {
	engine := django.NewFileSystem(http.FS(templatesFS), ".html")
	if err := engine.Load(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load mail templates")
	}
	return engine, nil
}

var defaultSubjects = map[string]map[MailEvent]string{
	"en": {
		MailEventActivation:    "Account activation",
		MailEventCreation:      "Your account has been created",
		MailEventPasswordReset: "Password reset",
	},
	"ru": {
		MailEventActivation:    "Активация учетной записи",
		MailEventCreation:      "Ваша учетная запись создана",
		MailEventPasswordReset: "Сброс пароля",
	},
}

type mailer struct {
	cfg       Config
	engine    TemplateRenderer
	transport Transport
	logger    Logger
	subjects  map[string]map[MailEvent]string
}

// NewMailer creates a Mailer with sane defaults.
func NewMailer(cfg Config, engine TemplateRenderer, transport Transport) *mailer {
	return &mailer{
		cfg:       cfg,
		engine:    engine,
		transport: transport,
		logger:    defLogger{},
		subjects:  defaultSubjects,
	}
}

// WithLogger overrides the logger used by the mailer.
func (m *mailer) WithLogger(logger Logger) *mailer {
	if logger != nil {
		m.logger = logger
	}
	return m
}

// WithSubjects replaces the locale-scoped subject table.
func (m *mailer) WithSubjects(subjects map[string]map[MailEvent]string) *mailer {
	if len(subjects) > 0 {
		m.subjects = subjects
	}
	return m
}

// Notify renders the event template in the account's locale and dispatches it
// to the account's registered email address.
func (m *mailer) Notify(ctx context.Context, account *Account, event MailEvent) error {
	if account == nil || account.Email == "" {
		return goerrors.New("mail notification requires an account with an email", goerrors.CategoryBadInput)
	}

	locale := m.resolveLocale(account.LangKey)

	var buf bytes.Buffer
	err := m.engine.Render(&buf, mailTemplateName(event, locale), map[string]any{
		"user":     account,
		"base_url": m.cfg.GetBaseURL(),
	})
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to render mail template").
			WithTextCode(TextCodeMailDelivery).
			WithMetadata(map[string]any{"event": string(event), "locale": locale})
	}

	mail := Mail{
		From:    m.cfg.GetMailSender(),
		To:      account.Email,
		Subject: m.subjectFor(locale, event),
		Body:    buf.String(),
		HTML:    true,
	}

	if err := m.transport.Send(ctx, mail); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to dispatch mail").
			WithTextCode(TextCodeMailDelivery).
			WithMetadata(map[string]any{"event": string(event), "to": account.Email})
	}

	return nil
}

func (m *mailer) resolveLocale(langKey string) string {
	return NormalizeLangKey(langKey, m.cfg)
}

func (m *mailer) subjectFor(locale string, event MailEvent) string {
	if subjects, ok := m.subjects[locale]; ok {
		if subject, ok := subjects[event]; ok {
			return subject
		}
	}
	if subjects, ok := m.subjects[m.cfg.GetDefaultLangKey()]; ok {
		if subject, ok := subjects[event]; ok {
			return subject
		}
	}
	return string(event)
}

func mailTemplateName(event MailEvent, locale string) string {
	// templates are stored as templates/<event>_<locale>.html
	return fmt.Sprintf("templates/%s_%s", event, locale)
}

// fireMailNotification dispatches a notification after the triggering
// transition has been committed. It runs detached from the request context:
// cancelling the caller has no effect on already persisted state, and a
// render or transport failure is logged and recorded, never surfaced.
func fireMailNotification(m Mailer, logger Logger, sink ActivitySink, account *Account, event MailEvent) {
	if m == nil || account == nil {
		return
	}
	if logger == nil {
		logger = defLogger{}
	}
	sink = normalizeActivitySink(sink)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second*30)
		defer cancel()

		if err := m.Notify(ctx, account, event); err != nil {
			logger.Error("mail %s notification to %s failed: %v", event, account.Email, err)

			if sinkErr := sink.Record(ctx, ActivityEvent{
				EventType: ActivityEventMailFailure,
				Actor:     ActorRef{Type: "system"},
				AccountID: account.ID.String(),
				Metadata: map[string]any{
					"event": string(event),
					"error": err.Error(),
				},
				OccurredAt: time.Now(),
			}); sinkErr != nil {
				logger.Warn("activity sink error during mail failure: %v", sinkErr)
			}
		}
	}()
}
