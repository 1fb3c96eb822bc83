// Package service contains the business logic layer of the application.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → decodes procedure input, writes the envelope
//	Service (Business layer) → validates, normalizes, enforces ownership
//	Repository (Data layer)  → reads/writes sqlite or postgres
//
// Services accept primitives and small parameter structs, never HTTP types,
// and return apperror values that the handler layer maps to procedure codes.
// Every dependency is an interface from the repository package so tests can
// pass in-memory fakes (see fakes_test.go).
package service

import (
	"strings"
	"time"

	"github.com/sakif/timekeeper/internal/apperror"
	"github.com/sakif/timekeeper/internal/repository"
)

// Clock returns the current instant. Services stamp createdAt/updatedAt with
// it so tests can make ordering deterministic.
type Clock func() time.Time

func utcClock(c Clock) Clock {
	if c == nil {
		c = time.Now
	}
	return func() time.Time { return c().UTC() }
}

// resolveOwner decides which user a call acts for.
//
// Procedures carry a userId in their input. It must name the caller: an
// empty value means "me", anything else is FORBIDDEN. This keeps one user
// from reading or writing another user's rows by editing a request body.
func resolveOwner(sessionUserID, requested string) (string, error) {
	if sessionUserID == "" {
		return "", apperror.Unauthorized("Authentication required")
	}
	requested = strings.TrimSpace(requested)
	if requested == "" || requested == sessionUserID {
		return sessionUserID, nil
	}
	return "", apperror.Forbidden("userId does not match the signed-in user")
}

// parseSortOrder maps the orderBy input; empty means ascending.
func parseSortOrder(raw string) (repository.SortOrder, error) {
	if raw == "" {
		return repository.SortAsc, nil
	}
	o := repository.SortOrder(strings.ToLower(raw))
	if !o.Valid() {
		return "", apperror.ValidationFailed("orderBy", `orderBy must be "asc" or "desc"`)
	}
	return o, nil
}
