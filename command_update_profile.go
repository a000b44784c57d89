package accounts

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// UpdateProfileMessage carries a profile edit for the account identified by
// Login. Only FirstName, LastName, Email, and LangKey are ever applied.
// Authorities is accepted so that clients can round trip the public profile
// shape, but its value is discarded: privilege grants never ride on this
// operation.
type UpdateProfileMessage struct {
	Login       string      `json:"login"`
	FirstName   string      `json:"first_name"`
	LastName    string      `json:"last_name"`
	Email       string      `json:"email"`
	LangKey     string      `json:"lang_key"`
	Authorities []Authority `json:"authorities"`
	OnResponse  func(resp *UpdateProfileResponse)
}

func (e UpdateProfileMessage) Type() string { return "account.profile.update" }

type UpdateProfileResponse struct {
	Account Profile
	Success bool
}

type UpdateProfileHandler struct {
	repo     RepositoryManager
	cfg      Config
	policy   Policy
	activity ActivitySink
	logger   Logger
}

// NewUpdateProfileHandler creates a handler with sane defaults.
func NewUpdateProfileHandler(repo RepositoryManager, cfg Config) *UpdateProfileHandler {
	return &UpdateProfileHandler{
		repo:     repo,
		cfg:      cfg,
		policy:   NewPolicy(cfg),
		activity: noopActivitySink{},
		logger:   defLogger{},
	}
}

// WithActivitySink sets the sink used to emit profile update events.
func (h *UpdateProfileHandler) WithActivitySink(sink ActivitySink) *UpdateProfileHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *UpdateProfileHandler) WithLogger(logger Logger) *UpdateProfileHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *UpdateProfileHandler) Execute(ctx context.Context, event UpdateProfileMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during profile update")
	default:
		return h.execute(ctx, event)
	}
}

func (h *UpdateProfileHandler) execute(ctx context.Context, event UpdateProfileMessage) error {
	account := &Account{}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	login := NormalizeLogin(event.Login)
	if login == "" {
		return ErrAccountNotFound
	}

	if event.Email != "" {
		if err := h.policy.ValidateEmail(event.Email); err != nil {
			return err
		}
	}

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		found, err := h.repo.Accounts().FindByLoginTx(ctx, tx, login)
		if err != nil {
			if repository.IsRecordNotFound(err) {
				return ErrAccountNotFound
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve account for update")
		}

		if event.Email != "" && !strings.EqualFold(event.Email, found.Email) {
			if other, err := h.repo.Accounts().FindByEmailTx(ctx, tx, event.Email); err == nil {
				if other.ID != found.ID {
					return ErrDuplicateEmail
				}
			} else if !repository.IsRecordNotFound(err) {
				return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check email uniqueness")
			}
			found.Email = event.Email
		}

		// authorities from the message are dropped on the floor here; the
		// stored grants survive every profile update untouched
		found.FirstName = event.FirstName
		found.LastName = event.LastName
		if event.LangKey != "" {
			found.LangKey = NormalizeLangKey(event.LangKey, h.cfg)
		}

		updated, err := h.repo.Accounts().UpdateTx(ctx, tx, found,
			repository.UpdateByID(found.ID.String()),
		)
		if err != nil {
			if dup := DuplicateFromConstraint(err); dup != err {
				return dup
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist profile update")
		}

		account = updated
		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "profile update transaction failed")
	}

	h.recordActivity(ctx, account)

	if event.OnResponse != nil {
		event.OnResponse(&UpdateProfileResponse{
			Account: account.Public(),
			Success: true,
		})
	}

	return nil
}

func (h *UpdateProfileHandler) recordActivity(ctx context.Context, account *Account) {
	event := ActivityEvent{
		EventType: ActivityEventProfileUpdated,
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
		h.logger.Warn("activity sink error during profile update: %v", err)
	}
}
