package server

import (
	"os"
	"path/filepath"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/goliatone/go-contacts/auth"
)

type registerPayload struct {
	Email        string `json:"email" form:"email"`
	Password     string `json:"password" form:"password"`
	Subscription string `json:"subscription" form:"subscription"`
}

func (r registerPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Email,
			validation.Required,
			is.Email,
		),
		// Any non-empty password is accepted; the cap pre-empts bcrypt's
		// 72-byte input limit.
		validation.Field(
			&r.Password,
			validation.Required,
			validation.Length(0, 72),
		),
	)
}

func (s *Server) registerUser(c *fiber.Ctx) error {
	payload := registerPayload{}
	if err := c.BodyParser(&payload); err != nil {
		return s.respondError(c, auth.ErrMissingFields)
	}

	if err := payload.Validate(); err != nil {
		return s.respondError(c, err)
	}

	profile, err := s.accounts.Register(c.UserContext(), auth.RegisterInput{
		Email:        payload.Email,
		Password:     payload.Password,
		Subscription: payload.Subscription,
	})
	if err != nil {
		return s.respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(profile)
}

type loginPayload struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

func (r loginPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Email,
			validation.Required,
			is.Email,
		),
		validation.Field(
			&r.Password,
			validation.Required,
		),
	)
}

func (s *Server) loginUser(c *fiber.Ctx) error {
	payload := loginPayload{}
	if err := c.BodyParser(&payload); err != nil {
		return s.respondError(c, auth.ErrMissingFields)
	}

	if err := payload.Validate(); err != nil {
		return s.respondError(c, err)
	}

	token, profile, err := s.accounts.Login(c.UserContext(), payload.Email, payload.Password)
	if err != nil {
		return s.respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"token": token,
		"user":  profile,
	})
}

func (s *Server) logoutUser(c *fiber.Ctx) error {
	user, ok := currentUser(c)
	if !ok {
		return s.respondError(c, auth.ErrNotAuthorized)
	}

	if err := s.accounts.Logout(c.UserContext(), user.ID); err != nil {
		return s.respondError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) getCurrentUser(c *fiber.Ctx) error {
	user, ok := currentUser(c)
	if !ok {
		return s.respondError(c, auth.ErrNotAuthorized)
	}

	profile, err := s.accounts.CurrentUser(c.UserContext(), user.ID)
	if err != nil {
		return s.respondError(c, err)
	}

	return c.JSON(profile)
}

func (s *Server) updateAvatar(c *fiber.Ctx) error {
	user, ok := currentUser(c)
	if !ok {
		return s.respondError(c, auth.ErrNotAuthorized)
	}

	file, err := c.FormFile("avatar")
	if err != nil {
		return s.respondError(c, auth.ErrMissingFields)
	}

	if err := os.MkdirAll(s.tmpDir, 0o755); err != nil {
		return s.respondError(c, err)
	}

	// Unique temp name: concurrent uploads of files with the same client
	// name must not clobber each other.
	tempPath := filepath.Join(s.tmpDir, uuid.NewString()+filepath.Ext(file.Filename))
	if err := c.SaveFile(file, tempPath); err != nil {
		return s.respondError(c, err)
	}

	avatarURL, err := s.accounts.UpdateAvatar(c.UserContext(), user.ID, tempPath, file.Filename)
	if err != nil {
		return s.respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"avatarURL": avatarURL,
	})
}

func (s *Server) verifyUser(c *fiber.Ctx) error {
	token := c.Params("token")
	if err := s.accounts.VerifyByToken(c.UserContext(), token); err != nil {
		return s.respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"message": "Verification successful",
	})
}

type resendPayload struct {
	Email string `json:"email" form:"email"`
}

func (r resendPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Email,
			validation.Required,
			is.Email,
		),
	)
}

func (s *Server) resendVerification(c *fiber.Ctx) error {
	payload := resendPayload{}
	if err := c.BodyParser(&payload); err != nil {
		return s.respondError(c, auth.ErrMissingFields)
	}

	if err := payload.Validate(); err != nil {
		return s.respondError(c, err)
	}

	if err := s.accounts.ResendVerification(c.UserContext(), payload.Email); err != nil {
		return s.respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"message": "Verification email sent",
	})
}
