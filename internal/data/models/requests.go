package models

import "time"

// UpdateDataRequest is the wire shape for POST /api/data/update.
type UpdateDataRequest struct {
	Data Payload `json:"data"`
}

// RequestAccessRequest is the wire shape for POST /api/data/request.
type RequestAccessRequest struct {
	UserID    string   `json:"user_id"`
	DataTypes []string `json:"data_types"`
	Purpose   string   `json:"purpose"`
}

// AccessRequestSummary is the response shape of a created access request.
type AccessRequestSummary struct {
	ID          string    `json:"id"`
	RequesterID string    `json:"requester_id"`
	UserID      string    `json:"user_id"`
	DataTypes   []string  `json:"data_types"`
	Purpose     string    `json:"purpose"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

// SummarizeRequest converts an access request to its response shape.
func SummarizeRequest(r *AccessRequest) AccessRequestSummary {
	dataTypes := make([]string, len(r.DataTypes))
	for i, dt := range r.DataTypes {
		dataTypes[i] = dt.String()
	}
	return AccessRequestSummary{
		ID:          r.ID.String(),
		RequesterID: r.RequesterID.String(),
		UserID:      r.OwnerID.String(),
		DataTypes:   dataTypes,
		Purpose:     r.Purpose,
		Status:      string(r.Status),
		CreatedAt:   r.CreatedAt,
	}
}
