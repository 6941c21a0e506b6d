package serverutils

// Envelope is the JSON body returned for request failures. Successful
// endpoints return their payload DTOs directly.
type Envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func ErrorResponse(message string) Envelope {
	return Envelope{
		Success: false,
		Message: message,
	}
}
