// Package server mounts the account lifecycle and contacts resources on a
// fiber application. Handlers translate payloads and errors; all domain
// decisions live behind the managers they call.
package server

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/goliatone/go-contacts/auth"
	"github.com/goliatone/go-contacts/contacts"
)

// Config carries the HTTP-facing settings.
type Config struct {
	Addr string

	// Uploads are spooled here before the avatar pipeline takes over.
	TmpDir string

	// Durable avatar assets, served statically under the public prefix.
	AvatarDir          string
	AvatarPublicPrefix string
}

// Server owns the fiber app and its wiring.
type Server struct {
	app      *fiber.App
	accounts *auth.Accounts
	contacts contacts.Contacts
	logger   auth.Logger

	addr   string
	tmpDir string
}

// Option configures the server.
type Option func(*Server)

// WithLogger overrides the default logger.
func WithLogger(logger auth.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New builds the server and registers every route.
func New(cfg Config, accounts *auth.Accounts, store contacts.Contacts, opts ...Option) *Server {
	s := &Server{
		accounts: accounts,
		contacts: store,
		logger:   auth.DefaultLogger(),
		addr:     cfg.Addr,
		tmpDir:   cfg.TmpDir,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	s.app = fiber.New(fiber.Config{
		AppName:               "go-contacts",
		DisableStartupMessage: true,
	})

	s.routes(cfg)

	return s
}

func (s *Server) routes(cfg Config) {
	s.app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	if cfg.AvatarDir != "" && cfg.AvatarPublicPrefix != "" {
		s.app.Static(cfg.AvatarPublicPrefix, cfg.AvatarDir)
	}

	api := s.app.Group("/api")

	users := api.Group("/users")
	users.Post("/", s.registerUser)
	users.Post("/login", s.loginUser)
	users.Get("/logout", s.requireAuth, s.logoutUser)
	users.Get("/current", s.requireAuth, s.getCurrentUser)
	users.Patch("/avatars", s.requireAuth, s.updateAvatar)
	users.Get("/verify/:token", s.verifyUser)
	users.Post("/verify", s.resendVerification)

	ct := api.Group("/contacts")
	ct.Get("/", s.listContacts)
	ct.Get("/:id", s.getContact)
	ct.Post("/", s.createContact)
	ct.Put("/:id", s.updateContact)
	ct.Delete("/:id", s.removeContact)
}

// App exposes the underlying fiber app, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen blocks serving requests until Shutdown or a fatal error.
func (s *Server) Listen() error {
	s.logger.Info("http server listening", "addr", s.addr)
	return s.app.Listen(s.addr)
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}
