package domain

// TemplateResource is one entry of the template metadata catalog. Validation
// rules, when present, are a JSON-Schema document applied to the request data
// before rendering.
type TemplateResource struct {
	TemplateID              string `json:"templateId"`
	Description             string `json:"description,omitempty"`
	TemplateExampleURL      string `json:"templateExampleUrl,omitempty"`
	TemplateValidationRules string `json:"templateValidationRules,omitempty"`
}
