package accounts

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/uptrace/bun"
)

type RegisterAccountMessage struct {
	Login     string `json:"login"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	LangKey   string `json:"lang_key"`
	// Activated marks the administrative creation path: the account starts
	// active with a random placeholder credential and gets a creation mail
	// instead of an activation mail.
	Activated   bool        `json:"activated"`
	Authorities []Authority `json:"authorities"`
	UseHashid   bool
	OnResponse  func(resp *RegisterAccountResponse)
}

func (e RegisterAccountMessage) Type() string { return "account.register" }

type RegisterAccountResponse struct {
	Account Profile
	Success bool
}

type RegisterAccountHandler struct {
	repo     RepositoryManager
	mailer   Mailer
	cfg      Config
	policy   Policy
	activity ActivitySink
	logger   Logger
}

// NewRegisterAccountHandler creates a handler with sane defaults.
func NewRegisterAccountHandler(repo RepositoryManager, cfg Config) *RegisterAccountHandler {
	return &RegisterAccountHandler{
		repo:     repo,
		cfg:      cfg,
		policy:   NewPolicy(cfg),
		activity: noopActivitySink{},
		logger:   defLogger{},
	}
}

// WithMailer sets the notification gateway used after commit.
func (h *RegisterAccountHandler) WithMailer(m Mailer) *RegisterAccountHandler {
	h.mailer = m
	return h
}

// WithActivitySink sets the sink used to emit registration events.
func (h *RegisterAccountHandler) WithActivitySink(sink ActivitySink) *RegisterAccountHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *RegisterAccountHandler) WithLogger(logger Logger) *RegisterAccountHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *RegisterAccountHandler) Execute(ctx context.Context, event RegisterAccountMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during account registration",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RegisterAccountHandler) execute(ctx context.Context, event RegisterAccountMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	login := NormalizeLogin(event.Login)

	// field checks fail fast so the caller gets one field-scoped error
	if err := h.policy.ValidateLogin(login); err != nil {
		return err
	}
	if err := h.policy.ValidateEmail(event.Email); err != nil {
		return err
	}
	if !event.Activated {
		if err := h.policy.ValidatePassword(event.Password); err != nil {
			return err
		}
	}

	account := &Account{
		Login:       login,
		Email:       event.Email,
		FirstName:   event.FirstName,
		LastName:    event.LastName,
		LangKey:     NormalizeLangKey(event.LangKey, h.cfg),
		Authorities: NormalizeAuthorities(event.Authorities),
		Activated:   event.Activated,
	}

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := h.repo.Accounts().FindByLoginTx(ctx, tx, login); err == nil {
			return ErrDuplicateLogin
		} else if !repository.IsRecordNotFound(err) {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check login uniqueness")
		}

		if _, err := h.repo.Accounts().FindByEmailTx(ctx, tx, event.Email); err == nil {
			return ErrDuplicateEmail
		} else if !repository.IsRecordNotFound(err) {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check email uniqueness")
		}

		if event.Activated {
			account.PasswordHash = RandomPasswordHash()
		} else {
			hash, err := HashPassword(event.Password)
			if err != nil {
				var richErr *goerrors.Error
				if goerrors.As(err, &richErr) {
					return goerrors.Wrap(richErr, goerrors.CategoryValidation, "invalid password provided")
				}
				return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
			}
			account.PasswordHash = hash
			account.ActivationKey = GenerateKey()
		}

		if event.UseHashid {
			if id, err := hashid.NewUUID(event.Email); err == nil {
				account.ID = id
			}
		}

		created, err := h.repo.Accounts().RegisterTx(ctx, tx, account)
		if err != nil {
			// a concurrent registration can slip past the pre-check; the
			// storage constraint still holds the invariant
			if dup := DuplicateFromConstraint(err); dup != err {
				return dup
			}
			return goerrors.Wrap(err, goerrors.CategoryConflict, "could not create account")
		}

		account = created
		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "account registration transaction failed")
	}

	// state is committed; notification is best effort from here on
	mailEvent := MailEventActivation
	if event.Activated {
		mailEvent = MailEventCreation
	}
	fireMailNotification(h.mailer, h.logger, h.activity, account, mailEvent)

	h.recordActivity(ctx, account)

	if event.OnResponse != nil {
		event.OnResponse(&RegisterAccountResponse{
			Account: account.Public(),
			Success: true,
		})
	}

	return nil
}

func (h *RegisterAccountHandler) recordActivity(ctx context.Context, account *Account) {
	event := ActivityEvent{
		EventType: ActivityEventAccountRegistered,
		Actor: ActorRef{
			ID:   account.ID.String(),
			Type: "account",
		},
		AccountID: account.ID.String(),
		Metadata: map[string]any{
			"login": account.Login,
		},
		OccurredAt: time.Now(),
	}

	if err := normalizeActivitySink(h.activity).Record(ctx, event); err != nil {
		h.logger.Warn("activity sink error during registration: %v", err)
	}
}
