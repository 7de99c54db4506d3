package paywall

import (
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/gofiber/fiber/v2"
)

// RegisterRoutes mounts the wire contract onto a fiber app. The webhook and
// the credential endpoints are public; everything else goes through the auth
// gate, and the pro feature additionally through the entitlement gate.
func RegisterRoutes(app *fiber.App, controller *Controller, auther *RouteAuthenticator) {
	protected := auther.Protected()

	app.Post("/auth/register", controller.RegisterPost).Name("auth.register")
	app.Post("/auth/login", controller.LoginPost).Name("auth.login")
	app.Get("/auth/me", protected, controller.MeGet).Name("auth.me")

	app.Post("/pay/create", protected, controller.CheckoutPost).Name("pay.create")
	app.Post("/pay/webhook", controller.WebhookPost).Name("pay.webhook")

	app.Get("/pro/feature", protected, auther.RequirePaid(), controller.ProFeatureGet).Name("pro.feature")
}

type Controller struct {
	Logger     Logger
	Repo       RepositoryManager
	Auther     *Auther
	Register   *RegisterUserHandler
	Checkout   *CheckoutHandler
	Reconciler *ReconcilePaymentHandler
	ContextKey string
}

type ControllerOption func(*Controller) *Controller

func NewController(opts ...ControllerOption) *Controller {
	c := &Controller{
		Logger:     defLogger{},
		ContextKey: "user",
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Repo == nil {
		panic("Missing RepositoryManager in paywall controller...")
	}

	if c.Auther == nil {
		panic("Missing Authenticator in paywall controller...")
	}

	if c.Register == nil {
		c.Register = NewRegisterUserHandler(c.Repo).WithLogger(c.Logger)
	}

	if c.Checkout == nil {
		panic("Missing CheckoutHandler in paywall controller...")
	}

	if c.Reconciler == nil {
		panic("Missing ReconcilePaymentHandler in paywall controller...")
	}

	return c
}

func WithControllerLogger(logger Logger) ControllerOption {
	return func(c *Controller) *Controller {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

func WithControllerRepo(repo RepositoryManager) ControllerOption {
	return func(c *Controller) *Controller {
		c.Repo = repo
		return c
	}
}

func WithControllerAuther(auther *Auther) ControllerOption {
	return func(c *Controller) *Controller {
		c.Auther = auther
		return c
	}
}

func WithControllerHandlers(register *RegisterUserHandler, checkout *CheckoutHandler, reconciler *ReconcilePaymentHandler) ControllerOption {
	return func(c *Controller) *Controller {
		c.Register = register
		c.Checkout = checkout
		c.Reconciler = reconciler
		return c
	}
}

func WithControllerContextKey(key string) ControllerOption {
	return func(c *Controller) *Controller {
		if key != "" {
			c.ContextKey = key
		}
		return c
	}
}

// CredentialsPayload is the shared register/login request body
type CredentialsPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate will run validation rules
func (r CredentialsPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Email,
			validation.Required,
			is.Email,
		),
		validation.Field(
			&r.Password,
			validation.Required,
			validation.Length(6, 72),
		),
	)
}

func (a *Controller) RegisterPost(c *fiber.Ctx) error {
	payload := new(CredentialsPayload)

	if err := c.BodyParser(payload); err != nil {
		a.Logger.Error("register parse payload", "error", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Error parsing body",
		})
	}

	if err := payload.Validate(); err != nil {
		a.Logger.Error("register validate payload", "error", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	var user *User
	msg := RegisterUserMessage{
		Email:    payload.Email,
		Password: payload.Password,
		OnResponse: func(u *User) {
			user = u
		},
	}

	if err := a.Register.Execute(c.UserContext(), msg); err != nil {
		return RespondError(c, a.Logger, err)
	}

	token, err := a.Auther.TokenService().Generate(IdentityFromUser(user))
	if err != nil {
		return RespondError(c, a.Logger, err)
	}

	return c.JSON(fiber.Map{
		"token": token,
		"user":  user,
	})
}

func (a *Controller) LoginPost(c *fiber.Ctx) error {
	payload := new(CredentialsPayload)

	if err := c.BodyParser(payload); err != nil {
		a.Logger.Error("login parse payload", "error", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Error parsing body",
		})
	}

	if err := payload.Validate(); err != nil {
		a.Logger.Error("login validate payload", "error", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	token, err := a.Auther.Login(c.UserContext(), payload.Email, payload.Password)
	if err != nil {
		// wrong password and unknown email alike land here; answer the same
		return RespondError(c, a.Logger, err)
	}

	user, err := a.Repo.Users().GetByIdentifier(c.UserContext(), payload.Email)
	if err != nil {
		return RespondError(c, a.Logger, ErrMismatchedHashAndPassword)
	}

	return c.JSON(fiber.Map{
		"token": token,
		"user":  user,
	})
}

func (a *Controller) MeGet(c *fiber.Ctx) error {
	claims, ok := GetFiberClaims(c, a.ContextKey)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Unauthorized",
		})
	}

	user, err := a.Repo.Users().GetByIdentifier(c.UserContext(), claims.UserID())
	if err != nil {
		a.Logger.Error("me lookup failed", "user_id", claims.UserID(), "error", err)
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Unauthorized",
		})
	}

	return c.JSON(fiber.Map{
		"user": user,
	})
}

// CheckoutCreatePayload is the request body for opening a payment intent
type CheckoutCreatePayload struct {
	Title    string  `json:"title"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
	Currency string  `json:"currency"`
}

// Validate will run validation rules
func (r CheckoutCreatePayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.Required, validation.Length(1, 256)),
		validation.Field(&r.Price, validation.Required, validation.Min(0.01)),
		validation.Field(&r.Quantity, validation.Required, validation.Min(1)),
		validation.Field(&r.Currency, validation.Required, validation.Length(3, 3)),
	)
}

func (a *Controller) CheckoutPost(c *fiber.Ctx) error {
	claims, ok := GetFiberClaims(c, a.ContextKey)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Unauthorized",
		})
	}

	payload := new(CheckoutCreatePayload)
	if err := c.BodyParser(payload); err != nil {
		a.Logger.Error("checkout parse payload", "error", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Error parsing body",
		})
	}

	if err := payload.Validate(); err != nil {
		a.Logger.Error("checkout validate payload", "error", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	var res *CheckoutResponse
	msg := CheckoutMessage{
		UserID:   claims.UserID(),
		Title:    payload.Title,
		Price:    payload.Price,
		Quantity: payload.Quantity,
		Currency: payload.Currency,
		OnResponse: func(r *CheckoutResponse) {
			res = r
		},
	}

	if err := a.Checkout.Execute(c.UserContext(), msg); err != nil {
		return RespondError(c, a.Logger, err)
	}

	return c.JSON(fiber.Map{
		"redirectUrl": res.RedirectURL,
		"id":          res.ID,
	})
}

// WebhookNotification is the provider's notification envelope. Everything
// except type and data.id is ignored by design.
type WebhookNotification struct {
	NotificationType string `json:"type"`
	Data             struct {
		ID string `json:"id"`
	} `json:"data"`
}

// WebhookPost acknowledges every structurally readable notification with 200,
// whatever reconciliation did. The caller is an automated system: a non-200
// here only buys us a retry storm.
func (a *Controller) WebhookPost(c *fiber.Ctx) error {
	payload := new(WebhookNotification)

	if err := c.BodyParser(payload); err != nil {
		a.Logger.Error("webhook parse payload", "error", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Error parsing body",
		})
	}

	msg := ReconcilePaymentMessage{
		NotificationType: payload.NotificationType,
		PaymentID:        payload.Data.ID,
	}

	if err := a.Reconciler.Execute(c.UserContext(), msg); err != nil {
		a.Logger.Error("webhook reconciliation failed",
			"payment_id", msg.PaymentID,
			"error", err,
		)
	}

	return c.JSON(fiber.Map{
		"received": true,
	})
}

func (a *Controller) ProFeatureGet(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"ok": true,
	})
}
