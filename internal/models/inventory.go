package models

// PartStatus is the stock situation of a part.
type PartStatus string

const (
	PartInStock      PartStatus = "Em Estoque"
	PartLowStock     PartStatus = "Estoque Baixo"
	PartOutOfStock   PartStatus = "Sem Estoque"
	PartDiscontinued PartStatus = "Descontinuado"
)

// PartCategory is one of the built-in part categories. Custom categories from
// the catalog configuration are stored as plain strings.
type PartCategory = string

const (
	CategoryEngine       PartCategory = "Motor"
	CategoryBrakes       PartCategory = "Freios"
	CategorySuspension   PartCategory = "Suspensão"
	CategoryBody         PartCategory = "Lataria"
	CategoryElectrical   PartCategory = "Elétrica"
	CategoryTransmission PartCategory = "Transmissão"
	CategoryDifferential PartCategory = "Diferencial"
	CategoryAccessories  PartCategory = "Acessórios"
	CategoryOther        PartCategory = "Outros"
)

// Part is an inventory item.
type Part struct {
	ID               string     `json:"id"`
	Name             string     `json:"name"`
	InternalCode     string     `json:"internalCode"`
	OriginalCode     string     `json:"originalCode"`
	Category         string     `json:"category"`
	SupplierName     string     `json:"supplierName"`
	SupplierDoc      string     `json:"supplierDoc"`
	SupplierEmail    string     `json:"supplierEmail"`
	SupplierPhone    string     `json:"supplierPhone"`
	Status           PartStatus `json:"status"`
	Description      string     `json:"description"`
	CreatedAt        string     `json:"createdAt"`
	ImageURL         string     `json:"imageUrl,omitempty"`
	ImageURLs        []string   `json:"imageUrls,omitempty"`
	ManualURL        string     `json:"manualUrl,omitempty"`
	CompatibleBrands []string   `json:"compatibleBrands,omitempty"`
	Price            *float64   `json:"price,omitempty"`
}

// MaintenanceSystem is the macro system of a vehicle a job or diagram
// belongs to.
type MaintenanceSystem string

const (
	SystemEngine       MaintenanceSystem = "Motor / Arrefecimento"
	SystemTransmission MaintenanceSystem = "Câmbio / Transmissão"
	SystemBrakes       MaintenanceSystem = "Freios / Pneumática"
	SystemSuspension   MaintenanceSystem = "Suspensão / Direção"
	SystemElectrical   MaintenanceSystem = "Elétrica / Eletrônica"
	SystemAC           MaintenanceSystem = "Ar Condicionado / Climatização"
	SystemBodywork     MaintenanceSystem = "Carroceria / Estrutura"
	SystemTires        MaintenanceSystem = "Rodagem / Pneus"
	SystemOther        MaintenanceSystem = "Outros / Acessórios"
)

// DiagramHotspot is a numbered marker on an assembly diagram image. X and Y
// are percentages of the image size.
type DiagramHotspot struct {
	ID          string  `json:"id"`
	Label       string  `json:"label"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	PartID      *string `json:"partId"`
	Description string  `json:"description,omitempty"`
}

// AssemblyDiagram is an exploded view with hotspots linking to parts.
type AssemblyDiagram struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	System    MaintenanceSystem `json:"system"`
	ImageURL  string            `json:"imageUrl"`
	Hotspots  []DiagramHotspot  `json:"hotspots"`
	CreatedAt string            `json:"createdAt"`
}

// CatalogConfig holds the custom taxonomy maintained by the stock team.
type CatalogConfig struct {
	CustomBrands     []string `json:"customBrands"`
	CustomCategories []string `json:"customCategories"`
	VehicleModels    []string `json:"vehicleModels"`
}

// PopularBrands are the brands offered before any custom brand is added.
var PopularBrands = []string{
	"Mercedes-Benz", "Volvo", "Scania", "VW / MAN", "Iveco", "Cummins", "MWM",
	"Eaton", "ZF", "Marcopolo", "Caio", "Busscar", "Agrale", "Ecolite",
}
