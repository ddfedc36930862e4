package domain

// RestAPI is a REST API known to the live gateway.
type RestAPI struct {
	ID   string
	Name string
}

// Throttle holds usage plan request rate limits.
type Throttle struct {
	RateLimit  float64 `json:"rateLimit"`
	BurstLimit int32   `json:"burstLimit"`
}

// Quota holds a usage plan request quota.
type Quota struct {
	Limit  int32  `json:"limit"`
	Offset int32  `json:"offset"`
	Period string `json:"period"`
}

// APIStage is one (apiId, stage) pair attached to a usage plan.
type APIStage struct {
	APIID string
	Stage string
}

// UsagePlan mirrors a gateway usage plan.
type UsagePlan struct {
	ID        string
	Name      string
	Throttle  *Throttle
	Quota     *Quota
	APIStages []APIStage
}

// Catalog is the storefront-facing artifact persisted as catalog.json.
type Catalog struct {
	APIGateway []CatalogUsagePlan `json:"apiGateway"`
	Generic    []GenericAPI       `json:"generic"`
}

// CatalogUsagePlan is a usage plan with the managed APIs that have a description on file.
type CatalogUsagePlan struct {
	ID       string       `json:"id"`
	Name     string       `json:"name"`
	Throttle *Throttle    `json:"throttle,omitempty"`
	Quota    *Quota       `json:"quota,omitempty"`
	APIs     []ManagedAPI `json:"apis"`
}

// ManagedAPI is a gateway-managed API stage listed under a usage plan.
type ManagedAPI struct {
	ID            string         `json:"id"`
	Stage         string         `json:"stage"`
	Swagger       map[string]any `json:"swagger"`
	Image         string         `json:"image"`
	SDKGeneration bool           `json:"sdkGeneration"`
}

// GenericAPI is an API description not scoped to any usage plan.
// APIID and APIStage are set for managed APIs shown without a usage plan.
type GenericAPI struct {
	ID            string         `json:"id"`
	Swagger       map[string]any `json:"swagger"`
	Image         string         `json:"image"`
	SDKGeneration bool           `json:"sdkGeneration"`
	APIID         string         `json:"apiId,omitempty"`
	APIStage      string         `json:"apiStage,omitempty"`
}

// Title returns info.title from the entry's description, or "" when absent.
func (g GenericAPI) Title() string {
	info, _ := g.Swagger["info"].(map[string]any)
	title, _ := info["title"].(string)
	return title
}

// SDKGenerationFlags maps "<apiId>_<stage>" or a generic id to SDK generation eligibility.
type SDKGenerationFlags map[string]bool

const logoPrefix = "/custom-content/api-logos/"

// ManagedImage returns the display image path for a managed API stage.
func ManagedImage(id APIIdentity) string {
	return logoPrefix + id.Key() + ".png"
}

// GenericImage returns the display image path for a generic API.
func GenericImage(genericID string) string {
	return logoPrefix + genericID + ".png"
}
