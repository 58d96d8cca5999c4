package api

import "comparador/pkg/models"

type ListResponse struct {
	Success bool             `json:"success"`
	Data    []models.Product `json:"data"`
	Total   int              `json:"total"`
	Query   string           `json:"query,omitempty"`
}

type ProductResponse struct {
	Success bool           `json:"success"`
	Data    models.Product `json:"data"`
	Message string         `json:"message"`
}
