package model

type PatientStatus string

const (
	PatientStatusActive    PatientStatus = "active"
	PatientStatusCompleted PatientStatus = "completed"
)

func (s PatientStatus) Valid() bool {
	return s == PatientStatusActive || s == PatientStatusCompleted
}

type Patient struct {
	Base
	Name   string        `db:"name" json:"name"`
	Email  string        `db:"email" json:"email"`
	Phone  string        `db:"phone" json:"phone"`
	Status PatientStatus `db:"status" json:"status"`
}

type PatientFilters struct {
	SearchTerm string        `json:"search_term" form:"search"`
	Status     PatientStatus `json:"status" form:"status" binding:"omitempty,oneof=active completed"`
	Pagination
}

type CreatePatientRequest struct {
	Name   string `json:"name" binding:"required"`
	Email  string `json:"email" binding:"omitempty,email"`
	Phone  string `json:"phone"`
	Status string `json:"status" binding:"omitempty,oneof=active completed"`
}

type UpdatePatientStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=active completed"`
}
