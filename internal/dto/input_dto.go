package dto

import "github.com/google/uuid"

type SubmitInputRequest struct {
	SenderId string `json:"senderId" validate:"required,min=1,max=128"`
	Text     string `json:"text" validate:"required,min=1,max=2000"`
}

type SubmitInputResponse struct {
	ItemId uuid.UUID `json:"itemId"`
	Status string    `json:"status"`
}

type NextVideoResponse struct {
	ItemId       uuid.UUID `json:"itemId"`
	VideoRef     string    `json:"videoRef"`
	ResponseText string    `json:"responseText"`
}
