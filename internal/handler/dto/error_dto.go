package dto

type APIErrorResponse struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ProtocolErrorResponse is the failure body of the client activation protocol.
type ProtocolErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

func NewProtocolError(code, message string) ProtocolErrorResponse {
	return ProtocolErrorResponse{Success: false, Error: code, Message: message}
}
