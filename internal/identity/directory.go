// Package identity resolves phone numbers and ids to identities for the confirmation and escalation flows.
package identity

import (
	"context"
	"strings"

	"voicetrust/backend/internal/identity/domain"
	"voicetrust/backend/internal/platform/apperr"
)

// Reader is the minimal identity repository needed by the directory.
type Reader interface {
	GetByID(ctx context.Context, id string) (*domain.Identity, error)
	GetByPhone(ctx context.Context, phone string) (*domain.Identity, error)
}

// Directory resolves identities. Store failures are reported as apperr.ErrDependencyUnavailable;
// a missing identity is (nil, nil) so callers can branch on it.
type Directory struct {
	repo Reader
}

// NewDirectory returns a Directory backed by repo.
func NewDirectory(repo Reader) *Directory {
	return &Directory{repo: repo}
}

// LookupByPhone normalizes phone and returns the matching identity or nil.
func (d *Directory) LookupByPhone(ctx context.Context, phone string) (*domain.Identity, error) {
	normalized, err := domain.NormalizePhone(phone)
	if err != nil {
		return nil, apperr.Invalid(err.Error())
	}
	ident, err := d.repo.GetByPhone(ctx, normalized)
	if err != nil {
		return nil, apperr.Unavailable("identity directory", err)
	}
	return ident, nil
}

// LookupByID returns the identity for id or nil.
func (d *Directory) LookupByID(ctx context.Context, id string) (*domain.Identity, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, nil
	}
	ident, err := d.repo.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.Unavailable("identity directory", err)
	}
	return ident, nil
}

// Resolve looks up by id first and falls back to phone. Returns apperr.ErrNotFound when neither matches.
func (d *Directory) Resolve(ctx context.Context, id, phone string) (*domain.Identity, error) {
	if id != "" {
		ident, err := d.LookupByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if ident != nil {
			return ident, nil
		}
	}
	if strings.TrimSpace(phone) != "" {
		ident, err := d.LookupByPhone(ctx, phone)
		if err != nil {
			return nil, err
		}
		if ident != nil {
			return ident, nil
		}
	}
	if id == "" && strings.TrimSpace(phone) == "" {
		return nil, apperr.Invalid("merchant_id or phone_e164 is required")
	}
	return nil, apperr.ErrNotFound
}
