package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/mod/semver"

	"github.com/atinyakov/mecsync/internal/client/notify"
	"github.com/atinyakov/mecsync/internal/models"
)

// Catalog accesses the custom brand and category configuration.
type Catalog struct{ c *Client }

// GetConfig returns the catalog configuration.
func (a *Catalog) GetConfig(ctx context.Context) (models.CatalogConfig, error) {
	cfg, err := getValue(ctx, a.c.store, models.KeyCatalogConfig, emptyCatalog())
	return normalizeCatalog(cfg), err
}

// UpdateConfig replaces the catalog configuration.
func (a *Catalog) UpdateConfig(ctx context.Context, cfg models.CatalogConfig) (models.CatalogConfig, error) {
	cfg = normalizeCatalog(cfg)
	err := a.c.store.Update(ctx, models.KeyCatalogConfig, func(json.RawMessage) (any, error) {
		return cfg, nil
	})
	if err != nil {
		return models.CatalogConfig{}, err
	}
	a.c.changed(notify.PartsUpdate, models.KeyCatalogConfig, models.ActionUpdate, models.ModuleStock,
		"Configurações de catálogo atualizadas", "Marcas/Categorias alteradas")
	return cfg, nil
}

// Brands returns the popular brands followed by the custom ones, without
// duplicates.
func (a *Catalog) Brands(ctx context.Context) ([]string, error) {
	cfg, err := a.GetConfig(ctx)
	if err != nil {
		return nil, err
	}
	out := slices.Clone(models.PopularBrands)
	for _, b := range cfg.CustomBrands {
		if !slices.Contains(out, b) {
			out = append(out, b)
		}
	}
	return out, nil
}

func emptyCatalog() models.CatalogConfig {
	return models.CatalogConfig{CustomBrands: []string{}, CustomCategories: []string{}, VehicleModels: []string{}}
}

func normalizeCatalog(cfg models.CatalogConfig) models.CatalogConfig {
	if cfg.CustomBrands == nil {
		cfg.CustomBrands = []string{}
	}
	if cfg.CustomCategories == nil {
		cfg.CustomCategories = []string{}
	}
	if cfg.VehicleModels == nil {
		cfg.VehicleModels = []string{}
	}
	return cfg
}

// System accesses the settings singleton.
type System struct{ c *Client }

func (a *System) defaults() models.SystemSettings {
	return models.SystemSettings{
		MinAppVersion: "0.0.0",
		LastUpdatedBy: "System",
		LastUpdatedAt: a.c.timestamp(),
	}
}

// GetSettings returns the settings. With force the document is refetched
// and an unreachable endpoint is an error.
func (a *System) GetSettings(ctx context.Context, force bool) (models.SystemSettings, error) {
	if force {
		if _, err := a.c.store.Fetch(ctx, true, true); err != nil {
			return models.SystemSettings{}, err
		}
	}
	return getValue(ctx, a.c.store, models.KeySettings, a.defaults())
}

// UpdateSettings merges patch into freshly fetched settings and tells every
// session, which locks non-admins out when maintenance mode is switched on.
func (a *System) UpdateSettings(ctx context.Context, patch SettingsPatch) (models.SystemSettings, error) {
	if _, err := a.c.store.Fetch(ctx, true, true); err != nil {
		return models.SystemSettings{}, err
	}
	if patch.LastUpdatedBy == nil {
		patch.LastUpdatedBy = Ptr(a.c.actorName())
	}

	var updated models.SystemSettings
	err := a.c.store.Update(ctx, models.KeySettings, func(current json.RawMessage) (any, error) {
		settings := a.defaults()
		if current != nil {
			if err := json.Unmarshal(current, &settings); err != nil {
				return nil, fmt.Errorf("decode %q: %w", models.KeySettings, err)
			}
		}
		var err error
		if updated, err = apply(settings, patch); err != nil {
			return nil, err
		}
		updated.LastUpdatedAt = a.c.timestamp()
		return updated, nil
	})
	if err != nil {
		return models.SystemSettings{}, err
	}
	a.c.changed(notify.SystemLockdown, models.KeySettings, models.ActionSystem, models.ModuleSystem,
		"Configurações de sistema alteradas", fmt.Sprintf("Manutenção: %v", updated.MaintenanceMode))
	return updated, nil
}

// VerifyGateway checks password against the internal system password from
// freshly fetched settings, or the configured one when the settings carry
// none. With neither set every password is refused.
func (a *System) VerifyGateway(ctx context.Context, password string) (bool, error) {
	settings, err := a.GetSettings(ctx, true)
	if err != nil {
		return false, err
	}
	want := settings.InternalSystemPassword
	if want == "" {
		want = a.c.gatewayPassword
	}
	if want == "" {
		return false, nil
	}
	return subtle.ConstantTimeCompare([]byte(want), []byte(password)) == 1, nil
}

// CheckVersion returns ErrUpdateRequired when version is older than the
// minimum app version in the settings.
func (a *System) CheckVersion(ctx context.Context, version string) error {
	settings, err := a.GetSettings(ctx, false)
	if err != nil {
		return err
	}
	minimum := canonicalVersion(settings.MinAppVersion)
	if !semver.IsValid(minimum) {
		if settings.MinAppVersion != "" {
			a.c.log.Warn("ignoring invalid minimum app version", zap.String("minAppVersion", settings.MinAppVersion))
		}
		return nil
	}
	current := canonicalVersion(version)
	if !semver.IsValid(current) || semver.Compare(current, minimum) < 0 {
		return fmt.Errorf("%w: running %s, minimum %s", ErrUpdateRequired, version, settings.MinAppVersion)
	}
	return nil
}

func canonicalVersion(v string) string {
	v = strings.TrimSpace(v)
	if v != "" && !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	return v
}

// Logs accesses the audit trail.
type Logs struct{ c *Client }

// List returns the audit trail, newest first.
func (a *Logs) List(ctx context.Context) ([]models.SystemLog, error) {
	return list(ctx, a.c.store, models.KeyLogs, []models.SystemLog{})
}

// Create writes entry to the trail synchronously.
func (a *Logs) Create(ctx context.Context, entry models.SystemLog) error {
	if err := a.c.rec.Append(ctx, entry); err != nil {
		return err
	}
	a.c.pub.Publish(notify.LogsUpdate, models.KeyLogs, a.c.store.Revision())
	return nil
}
