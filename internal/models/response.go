package models

// APIResponse is the envelope returned by every endpoint:
// {success, message, error, data}
type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Error   *AppError   `json:"error,omitempty"`
	Data    interface{} `json:"data"`
}

// NewSuccessResponse builds the envelope for a successful operation
func NewSuccessResponse(message string, data interface{}) APIResponse {
	return APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	}
}

// NewErrorResponse builds the envelope for a failed operation
func NewErrorResponse(err *AppError) APIResponse {
	return APIResponse{
		Success: false,
		Message: err.Message,
		Error:   err,
		Data:    struct{}{},
	}
}
