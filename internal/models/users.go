package models

// UserRole is the portal a user belongs to.
type UserRole string

const (
	RoleAdmin      UserRole = "IT_ADMIN"
	RoleStock      UserRole = "STOCK_MANAGER"
	RolePurchasing UserRole = "PURCHASING_AGENT"
	RoleMechanic   UserRole = "MECHANIC_LEAD"
	RoleSales      UserRole = "SALES_REP"
)

// User is an account allowed to log into one of the portals. Password holds a
// bcrypt hash for accounts written by this client; older documents may still
// carry plaintext.
type User struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Email      string   `json:"email"`
	Password   string   `json:"password"`
	Role       UserRole `json:"role"`
	Department string   `json:"department"`
}

// SystemSettings is the singleton settings object.
type SystemSettings struct {
	MaintenanceMode        bool   `json:"maintenanceMode"`
	MinAppVersion          string `json:"minAppVersion,omitempty"`
	InternalSystemPassword string `json:"internalSystemPassword,omitempty"`
	LastUpdatedBy          string `json:"lastUpdatedBy"`
	LastUpdatedAt          string `json:"lastUpdatedAt"`
}

// ActionType classifies an audit entry.
type ActionType string

const (
	ActionCreate       ActionType = "CREATE"
	ActionUpdate       ActionType = "UPDATE"
	ActionDelete       ActionType = "DELETE"
	ActionStatusChange ActionType = "STATUS_CHANGE"
	ActionLogin        ActionType = "LOGIN"
	ActionSystem       ActionType = "SYSTEM"
)

// Module tags the business area an audit entry belongs to.
type Module string

const (
	ModuleStock       Module = "STOCK"
	ModuleOrders      Module = "ORDERS"
	ModulePurchasing  Module = "PURCHASING"
	ModuleFleet       Module = "FLEET"
	ModuleSales       Module = "SALES"
	ModuleMaintenance Module = "MAINTENANCE"
	ModuleSystem      Module = "SYSTEM"
)

// SystemLog is one audit trail entry.
type SystemLog struct {
	ID          string     `json:"id"`
	Timestamp   string     `json:"timestamp"`
	ActorName   string     `json:"actorName"`
	ActorRole   string     `json:"actorRole"`
	ActionType  ActionType `json:"actionType"`
	Module      Module     `json:"module"`
	Description string     `json:"description"`
	Details     string     `json:"details,omitempty"`
}
