package api

import (
	"context"
	"crypto/subtle"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/atinyakov/mecsync/internal/client/notify"
	"github.com/atinyakov/mecsync/internal/models"
)

// Users accesses the account table.
type Users struct{ c *Client }

// List returns the stored users, or the seed accounts without their
// passwords when none are stored yet.
func (a *Users) List(ctx context.Context) ([]models.User, error) {
	return list(ctx, a.c.store, models.KeyUsers, a.c.seedFallback())
}

// Create appends u. The password is stored as a bcrypt hash.
func (a *Users) Create(ctx context.Context, u models.User) (models.User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	hash, err := a.c.hashPassword(u.Password)
	if err != nil {
		return models.User{}, err
	}
	u.Password = hash

	err = mutate(ctx, a.c.store, models.KeyUsers, a.c.seedFallback(), func(users []models.User) ([]models.User, error) {
		if slices.ContainsFunc(users, func(x models.User) bool { return x.ID == u.ID }) {
			return nil, fmt.Errorf("user %s: %w", u.ID, ErrDuplicate)
		}
		return append(users, u), nil
	})
	if err != nil {
		return models.User{}, err
	}
	a.c.changed(notify.UsersUpdate, models.KeyUsers, models.ActionCreate, models.ModuleSystem,
		fmt.Sprintf("Novo usuário adicionado: %s", u.Name), fmt.Sprintf("Role: %s", u.Role))
	return u, nil
}

// Update merges patch into the user with the given id.
func (a *Users) Update(ctx context.Context, id string, patch UserPatch) (models.User, error) {
	if patch.Password != nil {
		hash, err := a.c.hashPassword(*patch.Password)
		if err != nil {
			return models.User{}, err
		}
		patch.Password = &hash
	}

	var updated models.User
	err := mutate(ctx, a.c.store, models.KeyUsers, a.c.seedFallback(), func(users []models.User) ([]models.User, error) {
		i := slices.IndexFunc(users, func(x models.User) bool { return x.ID == id })
		if i < 0 {
			return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
		}
		var err error
		if updated, err = apply(users[i], patch); err != nil {
			return nil, err
		}
		users[i] = updated
		return users, nil
	})
	if err != nil {
		return models.User{}, err
	}
	a.c.changed(notify.UsersUpdate, models.KeyUsers, models.ActionUpdate, models.ModuleSystem,
		fmt.Sprintf("Usuário atualizado: ID %s", id), "")
	return updated, nil
}

// Delete revokes the user with the given id.
func (a *Users) Delete(ctx context.Context, id string) error {
	err := mutate(ctx, a.c.store, models.KeyUsers, a.c.seedFallback(), func(users []models.User) ([]models.User, error) {
		return slices.DeleteFunc(users, func(x models.User) bool { return x.ID == id }), nil
	})
	if err != nil {
		return err
	}
	a.c.changed(notify.UsersUpdate, models.KeyUsers, models.ActionDelete, models.ModuleSystem,
		fmt.Sprintf("Acesso revogado para usuário ID %s", id), "")
	return nil
}

func (c *Client) seedFallback() []models.User {
	out := make([]models.User, 0, len(c.seedUsers))
	for _, u := range c.seedUsers {
		u.Password = ""
		out = append(out, u)
	}
	return out
}

// hashPassword hashes p with bcrypt. Empty passwords and values that already
// are bcrypt hashes are returned as is.
func (c *Client) hashPassword(p string) (string, error) {
	if p == "" || isHash(p) {
		return p, nil
	}
	h, err := bcrypt.GenerateFromPassword([]byte(p), c.bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(h), nil
}

func isHash(p string) bool {
	_, err := bcrypt.Cost([]byte(p))
	return err == nil
}

// checkPassword accepts a bcrypt hash or a legacy plaintext password.
func checkPassword(stored, given string) bool {
	if stored == "" {
		return false
	}
	if isHash(stored) {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(given)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(given)) == 1
}
