package domain

// PolicyInput is the document evaluated by the prompt admission policy
// before a request is routed.
type PolicyInput struct {
	SessionID string            `json:"session_id"`
	Prompt    string            `json:"prompt"`
	Provider  string            `json:"provider,omitempty"`
	Params    map[string]string `json:"params,omitempty"`
}

type PolicyDeny struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

type PolicyResult struct {
	Allow bool         `json:"allow"`
	Deny  []PolicyDeny `json:"deny,omitempty"`
}

type PolicyEvaluation struct {
	BundleHash string       `json:"bundle_hash"`
	Result     PolicyResult `json:"result"`
}
