package model

// ResourceDescriptor describes a read-only data view exposed by a bridge.
type ResourceDescriptor struct {
	URI         string `json:"uri"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ToolDescriptor describes a parameterized action exposed by a bridge.
// InputSchema is a JSON Schema object kept in its decoded form so it can be
// passed through any transport unchanged.
type ToolDescriptor struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema,omitempty"`
}
