package accounts

import (
	"errors"
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

// IdentityResolver extracts the authenticated login from the request. The
// default reads the "login" local that an upstream auth middleware is
// expected to set.
type IdentityResolver func(ctx router.Context) (string, error)

func RegisterAccountRoutes[T any](app router.Router[T], opts ...AccountControllerOption) {

	controller := NewAccountController(opts...)

	app.Post(controller.Routes.Register, controller.RegistrationCreate).
		SetName("account-register.post")

	app.Get(controller.Routes.Activate, controller.ActivateAccount).
		SetName("account-activate.get")

	app.Get(controller.Routes.CurrentAccount, controller.CurrentAccount).
		SetName("account-current.get")

	app.Post(controller.Routes.UpdateAccount, controller.UpdateAccount).
		SetName("account-update.post")

	app.Post(controller.Routes.ChangePassword, controller.ChangePassword).
		SetName("account-password.post")

	app.Post(controller.Routes.ResetRequest, controller.ResetRequest).
		SetName("account-reset-init.post")

	app.Post(controller.Routes.ResetFinish, controller.ResetFinish).
		SetName("account-reset-finish.post")
}

type AccountControllerRoutes struct {
	Register       string
	Activate       string
	CurrentAccount string
	UpdateAccount  string
	ChangePassword string
	ResetRequest   string
	ResetFinish    string
}

type AccountController struct {
	Debug            bool
	Logger           Logger
	Repo             RepositoryManager
	Mailer           Mailer
	Config           Config
	Activity         ActivitySink
	Routes           *AccountControllerRoutes
	IdentityResolver IdentityResolver
	ErrorHandler     router.ErrorHandler
}

type AccountControllerOption func(*AccountController) *AccountController

func NewAccountController(opts ...AccountControllerOption) *AccountController {
	c := &AccountController{
		Logger:           defLogger{},
		Activity:         noopActivitySink{},
		IdentityResolver: defaultIdentityResolver,
		Routes: &AccountControllerRoutes{
			Register:       "/register",
			Activate:       "/activate/:key",
			CurrentAccount: "/account/current",
			UpdateAccount:  "/account",
			ChangePassword: "/account/change-password",
			ResetRequest:   "/account/reset-password/init",
			ResetFinish:    "/account/reset-password/finish",
		},
	}

	c.ErrorHandler = c.renderError

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Repo == nil {
		panic("Missing RepositoryManager in account controller...")
	}

	if c.Config == nil {
		panic("Missing Config in account controller...")
	}

	return c
}

// RegistrationCreatePayload is the registration body
type RegistrationCreatePayload struct {
	Login     string `form:"login" json:"login"`
	Email     string `form:"email" json:"email"`
	Password  string `form:"password" json:"password"`
	FirstName string `form:"first_name" json:"first_name"`
	LastName  string `form:"last_name" json:"last_name"`
	LangKey   string `form:"lang_key" json:"lang_key"`
}

// Validate will validate the payload. Field rules beyond presence live in
// the command handlers so the HTTP and programmatic paths agree.
func (r RegistrationCreatePayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Login, validation.Required),
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required),
	)
}

func (a *AccountController) RegistrationCreate(ctx router.Context) error {
	payload := new(RegistrationCreatePayload)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("register account parse payload: %v", err)
		return a.ErrorHandler(ctx, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse request body").
			WithCode(goerrors.CodeBadRequest))
	}

	if err := payload.Validate(); err != nil {
		a.Logger.Error("register account validate payload: %v", err)
		return ctx.JSON(fiber.StatusBadRequest, map[string]any{
			"validation": FormatValidationErrorToMap(err),
		})
	}

	if a.Debug {
		fmt.Println("======= ACCOUNT REGISTER ======")
		fmt.Println(print.MaybePrettyJSON(payload))
		fmt.Println("===============================")
	}

	var res *RegisterAccountResponse

	req := RegisterAccountMessage{
		Login:     payload.Login,
		Email:     payload.Email,
		Password:  payload.Password,
		FirstName: payload.FirstName,
		LastName:  payload.LastName,
		LangKey:   payload.LangKey,
		OnResponse: func(resp *RegisterAccountResponse) {
			res = resp
		},
	}

	register := NewRegisterAccountHandler(a.Repo, a.Config).
		WithMailer(a.Mailer).
		WithActivitySink(a.Activity).
		WithLogger(a.Logger)

	if err := register.Execute(ctx.Context(), req); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(fiber.StatusCreated, res.Account)
}

func (a *AccountController) ActivateAccount(ctx router.Context) error {
	key := ctx.Param("key", "")

	var res *ActivateAccountResponse

	req := ActivateAccountMessage{
		Key: key,
		OnResponse: func(resp *ActivateAccountResponse) {
			res = resp
		},
	}

	activate := NewActivateAccountHandler(a.Repo).
		WithActivitySink(a.Activity).
		WithLogger(a.Logger)

	if err := activate.Execute(ctx.Context(), req); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(fiber.StatusOK, res.Account)
}

func (a *AccountController) CurrentAccount(ctx router.Context) error {
	login, err := a.IdentityResolver(ctx)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	account, err := a.Repo.Accounts().FindByLogin(ctx.Context(), login)
	if err != nil {
		return a.ErrorHandler(ctx, ErrAccountNotFound)
	}

	return ctx.JSON(fiber.StatusOK, account.Public())
}

// UpdateAccountPayload is the profile update body. An authorities field is
// accepted but never applied.
type UpdateAccountPayload struct {
	FirstName   string      `form:"first_name" json:"first_name"`
	LastName    string      `form:"last_name" json:"last_name"`
	Email       string      `form:"email" json:"email"`
	LangKey     string      `form:"lang_key" json:"lang_key"`
	Authorities []Authority `form:"authorities" json:"authorities"`
}

// Validate will validate the payload
func (r UpdateAccountPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, is.Email),
	)
}

func (a *AccountController) UpdateAccount(ctx router.Context) error {
	login, err := a.IdentityResolver(ctx)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	payload := new(UpdateAccountPayload)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("update account parse payload: %v", err)
		return a.ErrorHandler(ctx, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse request body").
			WithCode(goerrors.CodeBadRequest))
	}

	if err := payload.Validate(); err != nil {
		a.Logger.Error("update account validate payload: %v", err)
		return ctx.JSON(fiber.StatusBadRequest, map[string]any{
			"validation": FormatValidationErrorToMap(err),
		})
	}

	var res *UpdateProfileResponse

	req := UpdateProfileMessage{
		Login:       login,
		FirstName:   payload.FirstName,
		LastName:    payload.LastName,
		Email:       payload.Email,
		LangKey:     payload.LangKey,
		Authorities: payload.Authorities,
		OnResponse: func(resp *UpdateProfileResponse) {
			res = resp
		},
	}

	update := NewUpdateProfileHandler(a.Repo, a.Config).
		WithActivitySink(a.Activity).
		WithLogger(a.Logger)

	if err := update.Execute(ctx.Context(), req); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(fiber.StatusOK, res.Account)
}

// ChangePasswordPayload carries the new credential
type ChangePasswordPayload struct {
	Password string `form:"password" json:"password"`
}

// Validate will validate the payload
func (r ChangePasswordPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Password, validation.Required),
	)
}

func (a *AccountController) ChangePassword(ctx router.Context) error {
	login, err := a.IdentityResolver(ctx)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	payload := new(ChangePasswordPayload)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("change password parse payload: %v", err)
		return a.ErrorHandler(ctx, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse request body").
			WithCode(goerrors.CodeBadRequest))
	}

	if err := payload.Validate(); err != nil {
		return ctx.JSON(fiber.StatusBadRequest, map[string]any{
			"validation": FormatValidationErrorToMap(err),
		})
	}

	account, err := a.Repo.Accounts().FindByLogin(ctx.Context(), login)
	if err != nil {
		return a.ErrorHandler(ctx, ErrAccountNotFound)
	}

	req := ChangePasswordMessage{
		AccountID: account.ID,
		Password:  payload.Password,
	}

	change := NewChangePasswordHandler(a.Repo, a.Config).
		WithActivitySink(a.Activity).
		WithLogger(a.Logger)

	if err := change.Execute(ctx.Context(), req); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(fiber.StatusOK, map[string]bool{"success": true})
}

// ResetRequestPayload identifies the account asking for a reset
type ResetRequestPayload struct {
	Email string `form:"email" json:"email"`
}

// Validate will validate the payload
func (r ResetRequestPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required),
	)
}

func (a *AccountController) ResetRequest(ctx router.Context) error {
	payload := new(ResetRequestPayload)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("reset request parse payload: %v", err)
		return a.ErrorHandler(ctx, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse request body").
			WithCode(goerrors.CodeBadRequest))
	}

	if err := payload.Validate(); err != nil {
		return ctx.JSON(fiber.StatusBadRequest, map[string]any{
			"validation": FormatValidationErrorToMap(err),
		})
	}

	req := InitializePasswordResetMessage{
		Identifier: payload.Email,
	}

	initReset := NewInitializePasswordResetHandler(a.Repo).
		WithMailer(a.Mailer).
		WithActivitySink(a.Activity).
		WithLogger(a.Logger)

	if err := initReset.Execute(ctx.Context(), req); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	// the response is identical whether or not the identifier matched
	return ctx.JSON(fiber.StatusOK, map[string]bool{"success": true})
}

// ResetFinishPayload redeems a reset key with its replacement credential
type ResetFinishPayload struct {
	Key      string `form:"key" json:"key"`
	Password string `form:"password" json:"password"`
}

// Validate will validate the payload
func (r ResetFinishPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Key, validation.Required),
		validation.Field(&r.Password, validation.Required),
	)
}

func (a *AccountController) ResetFinish(ctx router.Context) error {
	payload := new(ResetFinishPayload)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("reset finish parse payload: %v", err)
		return a.ErrorHandler(ctx, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse request body").
			WithCode(goerrors.CodeBadRequest))
	}

	if err := payload.Validate(); err != nil {
		return ctx.JSON(fiber.StatusBadRequest, map[string]any{
			"validation": FormatValidationErrorToMap(err),
		})
	}

	req := FinalizePasswordResetMessage{
		Key:      payload.Key,
		Password: payload.Password,
	}

	finalize := NewFinalizePasswordResetHandler(a.Repo, a.Config).
		WithActivitySink(a.Activity).
		WithLogger(a.Logger)

	if err := finalize.Execute(ctx.Context(), req); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(fiber.StatusOK, map[string]bool{"success": true})
}

func (a *AccountController) renderError(ctx router.Context, err error) error {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		richErr = goerrors.Wrap(err, goerrors.CategoryInternal, "An unexpected server error occurred").
			WithCode(goerrors.CodeInternal)
	}

	a.Logger.Error("account request failed: %s (%s)", richErr.Message, richErr.Category)

	if a.Debug {
		fmt.Println(print.MaybePrettyJSON(richErr))
	}

	status := fiber.StatusInternalServerError
	switch richErr.Category {
	case goerrors.CategoryValidation, goerrors.CategoryBadInput, goerrors.CategoryConflict:
		status = fiber.StatusBadRequest
	case goerrors.CategoryNotFound:
		status = fiber.StatusNotFound
	case goerrors.CategoryAuth:
		status = fiber.StatusUnauthorized
	}

	body := map[string]any{
		"error": richErr.Message,
	}
	if richErr.TextCode != "" {
		body["text_code"] = richErr.TextCode
	}
	if field, ok := ValidationField(richErr); ok {
		body["field"] = field
	}

	return ctx.JSON(status, body)
}

func defaultIdentityResolver(ctx router.Context) (string, error) {
	if login, ok := ctx.Locals("login").(string); ok && login != "" {
		return login, nil
	}
	return "", goerrors.New("request has no authenticated account", goerrors.CategoryAuth).
		WithCode(goerrors.CodeUnauthorized)
}

// FormatValidationErrorToMap flattens ozzo validation errors into a field
// indexed map for JSON rendering.
func FormatValidationErrorToMap(err error) map[string]string {
	out := map[string]string{}
	if err == nil {
		return out
	}

	var verrs validation.Errors
	if errors.As(err, &verrs) {
		for field, ferr := range verrs {
			out[strings.ToLower(field)] = ferr.Error()
		}
		return out
	}

	out["error"] = err.Error()
	return out
}
