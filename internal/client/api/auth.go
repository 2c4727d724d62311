package api

import (
	"context"
	"fmt"
	"strings"

	"github.com/atinyakov/mecsync/internal/models"
)

// Auth logs users in against the shared user table.
type Auth struct{ c *Client }

// Login refetches the document, so the decision is never made on stale
// users or settings, and matches email (case-insensitive) and password
// against the seed accounts followed by the stored users. Stored users whose
// email belongs to a seed account are ignored. While maintenance mode is on
// only admins get in.
//
// The returned user carries no password.
func (a *Auth) Login(ctx context.Context, email, password string) (models.User, error) {
	if _, err := a.c.store.Fetch(ctx, true, true); err != nil {
		return models.User{}, err
	}
	settings, err := getValue(ctx, a.c.store, models.KeySettings, models.SystemSettings{})
	if err != nil {
		return models.User{}, err
	}
	stored, err := list(ctx, a.c.store, models.KeyUsers, []models.User{})
	if err != nil {
		return models.User{}, err
	}

	clean := strings.ToLower(strings.TrimSpace(email))
	var (
		user  models.User
		found bool
	)
	for _, u := range a.c.candidates(stored) {
		if strings.ToLower(u.Email) == clean && checkPassword(u.Password, password) {
			user, found = u, true
			break
		}
	}
	if !found {
		return models.User{}, ErrInvalidCredentials
	}
	if settings.MaintenanceMode && user.Role != models.RoleAdmin {
		return models.User{}, ErrMaintenanceMode
	}

	user.Password = ""
	a.c.setSession(user)
	a.c.rec.SetActor(user.Name, user.Role)
	a.c.rec.Record(models.ActionLogin, models.ModuleSystem,
		fmt.Sprintf("Login efetuado no módulo %s", user.Department), fmt.Sprintf("User: %s", user.Name))
	return user, nil
}

// Logout forgets the session user.
func (a *Auth) Logout() {
	a.c.mu.Lock()
	a.c.session = nil
	a.c.mu.Unlock()
	a.c.rec.SetActor(defaultActor, defaultActorRole)
}

const (
	defaultActor     = "Usuário Ativo"
	defaultActorRole = models.UserRole("System")
)

// candidates merges the seed accounts that have a password with the stored
// users.
func (c *Client) candidates(stored []models.User) []models.User {
	out := make([]models.User, 0, len(c.seedUsers)+len(stored))
	for _, u := range c.seedUsers {
		if u.Password != "" {
			out = append(out, u)
		}
	}
	for _, su := range stored {
		seeded := false
		for _, u := range c.seedUsers {
			if strings.EqualFold(u.Email, su.Email) {
				seeded = true
				break
			}
		}
		if !seeded {
			out = append(out, su)
		}
	}
	return out
}
