package handlers

import (
	"net/mail"
	"strings"

	"github.com/pribylovaa/clinic-auth-service/internal/service"
)

const minPasswordLen = 8

// validEmail принимает только голый адрес без отображаемого имени.
func validEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}

func (in RegisterRequest) validate() error {
	fields := map[string]string{}

	if strings.TrimSpace(in.Name) == "" {
		fields["name"] = "required"
	}
	if strings.TrimSpace(in.Surname) == "" {
		fields["surname"] = "required"
	}
	if !validEmail(in.Email) {
		fields["email"] = "must be a valid email address"
	}
	if len([]rune(in.Password)) < minPasswordLen {
		fields["password"] = "must be at least 8 characters"
	}

	if len(fields) > 0 {
		return &service.ValidationError{Fields: fields}
	}
	return nil
}

func (in LoginRequest) validate() error {
	fields := map[string]string{}

	if !validEmail(in.Email) {
		fields["email"] = "must be a valid email address"
	}
	if in.Password == "" {
		fields["password"] = "required"
	}

	if len(fields) > 0 {
		return &service.ValidationError{Fields: fields}
	}
	return nil
}
