package accounts_test

import (
	"context"
	"testing"

	accounts "github.com/goliatone/go-accounts"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestController(repo accounts.RepositoryManager, opts ...accounts.AccountControllerOption) *accounts.AccountController {
	base := []accounts.AccountControllerOption{
		func(c *accounts.AccountController) *accounts.AccountController {
			c.Repo = repo
			c.Config = testConfig()
			c.Logger = testLogger{}
			c.Mailer = newChanMailer()
			return c
		},
	}
	return accounts.NewAccountController(append(base, opts...)...)
}

func TestAccountControllerRegistrationCreate(t *testing.T) {
	repo := &MockRepositoryManager{}
	accts := &MockAccounts{}
	repo.On("Accounts").Return(accts)

	notFound := repository.NewRecordNotFound()
	accts.On("FindByLoginTx", mock.Anything, mock.Anything, "johndoe").Return(nil, notFound)
	accts.On("FindByEmailTx", mock.Anything, mock.Anything, "john.doe@example.com").Return(nil, notFound)
	accts.On("RegisterTx", mock.Anything, mock.Anything, mock.Anything).Return(&accounts.Account{
		ID:            uuid.New(),
		Login:         "johndoe",
		Email:         "john.doe@example.com",
		ActivationKey: "the-activation-key",
	}, nil)

	controller := newTestController(repo)

	ctx := &MockContext{}
	ctx.On("Bind", mock.Anything).Run(func(args mock.Arguments) {
		payload := args.Get(0).(*accounts.RegistrationCreatePayload)
		payload.Login = "JohnDoe"
		payload.Email = "john.doe@example.com"
		payload.Password = "password123"
	}).Return(nil)
	ctx.On("Context").Return(context.Background())
	ctx.On("JSON", 201, mock.MatchedBy(func(val any) bool {
		profile, ok := val.(accounts.Profile)
		return ok && profile.Login == "johndoe"
	})).Return(nil)

	err := controller.RegistrationCreate(ctx)
	require.NoError(t, err)

	ctx.AssertExpectations(t)
	accts.AssertExpectations(t)
}

func TestAccountControllerRegistrationCreateValidation(t *testing.T) {
	repo := &MockRepositoryManager{}
	controller := newTestController(repo)

	ctx := &MockContext{}
	ctx.On("Bind", mock.Anything).Return(nil)
	ctx.On("JSON", 400, mock.MatchedBy(func(val any) bool {
		body, ok := val.(map[string]any)
		if !ok {
			return false
		}
		fields, ok := body["validation"].(map[string]string)
		return ok && fields["login"] != "" && fields["email"] != ""
	})).Return(nil)

	err := controller.RegistrationCreate(ctx)
	require.NoError(t, err)

	ctx.AssertExpectations(t)
	repo.AssertNotCalled(t, "Accounts")
}

func TestAccountControllerActivate(t *testing.T) {
	repo := &MockRepositoryManager{}
	accts := &MockAccounts{}
	repo.On("Accounts").Return(accts)

	accts.On("ActivateTx", mock.Anything, mock.Anything, "the-activation-key").Return(&accounts.Account{
		ID:        uuid.New(),
		Login:     "johndoe",
		Activated: true,
	}, nil)

	controller := newTestController(repo)

	ctx := &MockContext{}
	ctx.On("Param", "key", "").Return("the-activation-key")
	ctx.On("Context").Return(context.Background())
	ctx.On("JSON", 200, mock.MatchedBy(func(val any) bool {
		profile, ok := val.(accounts.Profile)
		return ok && profile.Activated
	})).Return(nil)

	err := controller.ActivateAccount(ctx)
	require.NoError(t, err)

	ctx.AssertExpectations(t)
}

func TestAccountControllerActivateInvalidKey(t *testing.T) {
	repo := &MockRepositoryManager{}
	accts := &MockAccounts{}
	repo.On("Accounts").Return(accts)

	accts.On("ActivateTx", mock.Anything, mock.Anything, "stale-key").
		Return(nil, accounts.ErrInvalidOrExpiredKey)

	controller := newTestController(repo)

	ctx := &MockContext{}
	ctx.On("Param", "key", "").Return("stale-key")
	ctx.On("Context").Return(context.Background())
	ctx.On("JSON", 400, mock.MatchedBy(func(val any) bool {
		body, ok := val.(map[string]any)
		return ok && body["text_code"] == accounts.TextCodeInvalidKey
	})).Return(nil)

	err := controller.ActivateAccount(ctx)
	require.NoError(t, err)

	ctx.AssertExpectations(t)
}

func TestAccountControllerCurrentAccount(t *testing.T) {
	repo := &MockRepositoryManager{}
	accts := &MockAccounts{}
	repo.On("Accounts").Return(accts)

	accts.On("FindByLogin", mock.Anything, "johndoe").Return(&accounts.Account{
		ID:           uuid.New(),
		Login:        "johndoe",
		Email:        "john.doe@example.com",
		PasswordHash: "secret-hash",
		Activated:    true,
	}, nil)

	controller := newTestController(repo)

	ctx := &MockContext{}
	ctx.On("Locals", "login").Return("johndoe")
	ctx.On("Context").Return(context.Background())
	ctx.On("JSON", 200, mock.MatchedBy(func(val any) bool {
		profile, ok := val.(accounts.Profile)
		return ok && profile.Login == "johndoe"
	})).Return(nil)

	err := controller.CurrentAccount(ctx)
	require.NoError(t, err)

	ctx.AssertExpectations(t)
}

func TestAccountControllerCurrentAccountUnauthenticated(t *testing.T) {
	repo := &MockRepositoryManager{}
	controller := newTestController(repo)

	ctx := &MockContext{}
	ctx.On("Locals", "login").Return(nil)
	ctx.On("JSON", 401, mock.Anything).Return(nil)

	err := controller.CurrentAccount(ctx)
	require.NoError(t, err)

	ctx.AssertExpectations(t)
	repo.AssertNotCalled(t, "Accounts")
}

func TestAccountControllerUpdateAccountStripsAuthorities(t *testing.T) {
	repo := &MockRepositoryManager{}
	accts := &MockAccounts{}
	repo.On("Accounts").Return(accts)

	id := uuid.New()
	accts.On("FindByLoginTx", mock.Anything, mock.Anything, "johndoe").Return(&accounts.Account{
		ID:          id,
		Login:       "johndoe",
		Email:       "john.doe@example.com",
		Authorities: []accounts.Authority{accounts.AuthorityUser},
	}, nil)
	accts.On("UpdateTx", mock.Anything, mock.Anything, mock.MatchedBy(func(record *accounts.Account) bool {
		return len(record.Authorities) == 1 && record.Authorities[0] == accounts.AuthorityUser
	}), mock.Anything).Return(&accounts.Account{
		ID:          id,
		Login:       "johndoe",
		FirstName:   "Johnny",
		Authorities: []accounts.Authority{accounts.AuthorityUser},
	}, nil)

	controller := newTestController(repo)

	ctx := &MockContext{}
	ctx.On("Locals", "login").Return("johndoe")
	ctx.On("Bind", mock.Anything).Run(func(args mock.Arguments) {
		payload := args.Get(0).(*accounts.UpdateAccountPayload)
		payload.FirstName = "Johnny"
		payload.Authorities = []accounts.Authority{accounts.AuthorityAdmin}
	}).Return(nil)
	ctx.On("Context").Return(context.Background())
	ctx.On("JSON", 200, mock.Anything).Return(nil)

	err := controller.UpdateAccount(ctx)
	require.NoError(t, err)

	ctx.AssertExpectations(t)
	accts.AssertExpectations(t)
}

func TestAccountControllerResetRequestAlwaysSucceeds(t *testing.T) {
	repo := &MockRepositoryManager{}
	accts := &MockAccounts{}
	repo.On("Accounts").Return(accts)

	notFound := repository.NewRecordNotFound()
	accts.On("FindByEmailTx", mock.Anything, mock.Anything, "ghost@example.com").Return(nil, notFound)
	accts.On("FindByLoginTx", mock.Anything, mock.Anything, "ghost@example.com").Return(nil, notFound)

	controller := newTestController(repo)

	ctx := &MockContext{}
	ctx.On("Bind", mock.Anything).Run(func(args mock.Arguments) {
		payload := args.Get(0).(*accounts.ResetRequestPayload)
		payload.Email = "ghost@example.com"
	}).Return(nil)
	ctx.On("Context").Return(context.Background())
	ctx.On("JSON", 200, map[string]bool{"success": true}).Return(nil)

	err := controller.ResetRequest(ctx)
	require.NoError(t, err)

	ctx.AssertExpectations(t)
	accts.AssertNotCalled(t, "StampResetKeyTx")
}
