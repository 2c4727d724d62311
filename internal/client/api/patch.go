package api

import (
	jsonpatch "github.com/evanphx/json-patch"

	"github.com/atinyakov/mecsync/internal/models"
)

// PartPatch lists the part fields an update may change. Nil fields are kept.
type PartPatch struct {
	Name             *string            `json:"name,omitempty"`
	InternalCode     *string            `json:"internalCode,omitempty"`
	OriginalCode     *string            `json:"originalCode,omitempty"`
	Category         *string            `json:"category,omitempty"`
	SupplierName     *string            `json:"supplierName,omitempty"`
	SupplierDoc      *string            `json:"supplierDoc,omitempty"`
	SupplierEmail    *string            `json:"supplierEmail,omitempty"`
	SupplierPhone    *string            `json:"supplierPhone,omitempty"`
	Status           *models.PartStatus `json:"status,omitempty"`
	Description      *string            `json:"description,omitempty"`
	ImageURL         *string            `json:"imageUrl,omitempty"`
	ImageURLs        *[]string          `json:"imageUrls,omitempty"`
	ManualURL        *string            `json:"manualUrl,omitempty"`
	CompatibleBrands *[]string          `json:"compatibleBrands,omitempty"`
	Price            *float64           `json:"price,omitempty"`
}

// UserPatch lists the user fields an update may change. A new password is
// hashed before it is stored.
type UserPatch struct {
	Name       *string          `json:"name,omitempty"`
	Email      *string          `json:"email,omitempty"`
	Password   *string          `json:"password,omitempty"`
	Role       *models.UserRole `json:"role,omitempty"`
	Department *string          `json:"department,omitempty"`
}

// DiagramPatch lists the diagram fields an update may change. Hotspots
// replace the stored list as a whole.
type DiagramPatch struct {
	Name     *string                   `json:"name,omitempty"`
	System   *models.MaintenanceSystem `json:"system,omitempty"`
	ImageURL *string                   `json:"imageUrl,omitempty"`
	Hotspots *[]models.DiagramHotspot  `json:"hotspots,omitempty"`
}

// SettingsPatch lists the settings fields an update may change.
type SettingsPatch struct {
	MaintenanceMode        *bool   `json:"maintenanceMode,omitempty"`
	MinAppVersion          *string `json:"minAppVersion,omitempty"`
	InternalSystemPassword *string `json:"internalSystemPassword,omitempty"`
	LastUpdatedBy          *string `json:"lastUpdatedBy,omitempty"`
}

// Ptr returns a pointer to v, for building patches.
func Ptr[T any](v T) *T { return &v }

func mergePatch(doc, patch []byte) ([]byte, error) {
	return jsonpatch.MergePatch(doc, patch)
}
