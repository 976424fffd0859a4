package http

// APIResponse is the envelope every endpoint writes. Status carries the
// operation's status code; the wire status stays 200, so clients branch
// on the body.
type APIResponse struct {
	Status  int         `json:"status" example:"200"`
	Message string      `json:"message" example:"OK"`
	Data    interface{} `json:"data,omitempty"`
}

// ValidationError represents validation error detail.
type ValidationError struct {
	Code    string                 `json:"code,omitempty" example:"ERR_REQUIRED"`
	Field   string                 `json:"field,omitempty" example:"symbols"`
	Message string                 `json:"message,omitempty" example:"Symbols is required"`
	Params  map[string]interface{} `json:"params,omitempty"`
}

// ListDataResponse wraps list payloads such as event queries.
type ListDataResponse struct {
	Rows  interface{} `json:"rows"`
	Total int64       `json:"total"`
}
