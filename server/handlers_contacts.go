package server

import (
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"

	"github.com/goliatone/go-contacts/contacts"
)

var errContactNotFound = goerrors.New("Not found", goerrors.CategoryNotFound).
	WithTextCode("CONTACT_NOT_FOUND").
	WithCode(goerrors.CodeNotFound)

type contactPayload struct {
	Name  string `json:"name" form:"name"`
	Email string `json:"email" form:"email"`
	Phone string `json:"phone" form:"phone"`
}

func (p contactPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&p.Email, validation.Required, is.Email),
		validation.Field(&p.Phone, validation.Required, validation.By(contacts.PhoneNumber)),
	)
}

func (p contactPayload) record() *contacts.Contact {
	return &contacts.Contact{
		Name:  p.Name,
		Email: p.Email,
		Phone: p.Phone,
	}
}

// contactID parses the path id. An id that cannot be a contact identifier
// behaves the same as one that matches no record.
func contactID(c *fiber.Ctx) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return uuid.Nil, errContactNotFound
	}
	return id, nil
}

func (s *Server) listContacts(c *fiber.Ctx) error {
	records, err := s.contacts.ListContacts(c.UserContext())
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(records)
}

func (s *Server) getContact(c *fiber.Ctx) error {
	id, err := contactID(c)
	if err != nil {
		return s.respondError(c, err)
	}

	record, err := s.contacts.GetContact(c.UserContext(), id)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(record)
}

func (s *Server) createContact(c *fiber.Ctx) error {
	payload := contactPayload{}
	if err := c.BodyParser(&payload); err != nil {
		return s.respondError(c, goerrors.New("Missing required field", goerrors.CategoryValidation).
			WithCode(goerrors.CodeBadRequest))
	}

	if err := payload.Validate(); err != nil {
		return s.respondError(c, err)
	}

	record, err := s.contacts.CreateContact(c.UserContext(), payload.record())
	if err != nil {
		return s.respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(record)
}

func (s *Server) updateContact(c *fiber.Ctx) error {
	id, err := contactID(c)
	if err != nil {
		return s.respondError(c, err)
	}

	payload := contactPayload{}
	if err := c.BodyParser(&payload); err != nil {
		return s.respondError(c, goerrors.New("Missing required field", goerrors.CategoryValidation).
			WithCode(goerrors.CodeBadRequest))
	}

	if err := payload.Validate(); err != nil {
		return s.respondError(c, err)
	}

	record, err := s.contacts.UpdateContact(c.UserContext(), id, payload.record())
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(record)
}

func (s *Server) removeContact(c *fiber.Ctx) error {
	id, err := contactID(c)
	if err != nil {
		return s.respondError(c, err)
	}

	if err := s.contacts.RemoveContact(c.UserContext(), id); err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"message": "contact deleted",
	})
}
