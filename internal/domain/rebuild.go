package domain

// RebuildActionName is the only action a direct rebuild invocation accepts.
const RebuildActionName = "rebuild"

// RebuildRequest is the payload sent to a remote rebuild endpoint or function.
type RebuildRequest struct {
	Action string `json:"action"`
}

// RebuildSummary reports what a rebuild pass wrote.
type RebuildSummary struct {
	UsagePlans  int `json:"usagePlans"`
	ManagedAPIs int `json:"managedApis"`
	Generic     int `json:"generic"`
}

// Summarize counts the entries of c.
func Summarize(c Catalog) RebuildSummary {
	s := RebuildSummary{UsagePlans: len(c.APIGateway), Generic: len(c.Generic)}
	for _, plan := range c.APIGateway {
		s.ManagedAPIs += len(plan.APIs)
	}
	return s
}
