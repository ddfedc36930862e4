package domain

// VisibilityRecord is the admin view of one live (apiId, stage) pair.
type VisibilityRecord struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Stage         string `json:"stage"`
	Visibility    bool   `json:"visibility"`
	Subscribable  bool   `json:"subscribable"`
	SDKGeneration bool   `json:"sdkGeneration"`
	UsagePlanID   string `json:"usagePlanId,omitempty"`
	UsagePlanName string `json:"usagePlanName,omitempty"`
}

// GenericVisibility is the admin view of a generic catalog entry.
type GenericVisibility struct {
	Visibility bool   `json:"visibility"`
	Name       string `json:"name"`
}

// VisibilityReport is derived on every admin view and never persisted.
type VisibilityReport struct {
	APIGateway []VisibilityRecord           `json:"apiGateway"`
	Generic    map[string]GenericVisibility `json:"generic"`
}
