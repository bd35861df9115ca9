package model

import "github.com/shopspring/decimal"

// ReposicionStatus enum constants
type ReposicionStatus string

const (
	ReposicionPending  ReposicionStatus = "pending"
	ReposicionReview   ReposicionStatus = "review"
	ReposicionPaid     ReposicionStatus = "paid"
	ReposicionRejected ReposicionStatus = "rejected"
)

func (s ReposicionStatus) IsValid() bool {
	switch s {
	case ReposicionPending, ReposicionReview, ReposicionPaid, ReposicionRejected:
		return true
	}
	return false
}

func (s ReposicionStatus) IsTerminal() bool {
	return s == ReposicionPaid || s == ReposicionRejected
}

// PaymentWhen says which payroll run pays a reposición.
type PaymentWhen string

const (
	WhenRol           PaymentWhen = "rol"
	WhenDecimoCuarto  PaymentWhen = "decimo_cuarto"
	WhenDecimoTercero PaymentWhen = "decimo_tercero"
	WhenLiquidacion   PaymentWhen = "liquidacion"
	WhenUtilidades    PaymentWhen = "utilidades"
)

func (w PaymentWhen) IsValid() bool {
	switch w {
	case WhenRol, WhenDecimoCuarto, WhenDecimoTercero, WhenLiquidacion, WhenUtilidades:
		return true
	}
	return false
}

// Reposicion is a reimbursement batch grouping requests of one project.
// TotalReposicion is frozen at creation.
type Reposicion struct {
	ID              ID               `json:"id"`
	FechaReposicion Date             `json:"fecha_reposicion"`
	TotalReposicion decimal.Decimal  `json:"total_reposicion"`
	Project         string           `json:"project"`
	Requests        []Request        `json:"requests,omitempty"`
	Month           string           `json:"month,omitempty"`
	When            PaymentWhen      `json:"when,omitempty"`
	Note            string           `json:"note,omitempty"`
	Status          ReposicionStatus `json:"status"`
	Attachment      string           `json:"attachment,omitempty"`
}

func (r Reposicion) MemberIDs() []string {
	ids := make([]string, 0, len(r.Requests))
	for _, req := range r.Requests {
		ids = append(ids, req.UniqueID)
	}
	return ids
}

// ReposicionUpdate is the PUT /reposiciones/{id} body.
type ReposicionUpdate struct {
	Status ReposicionStatus `json:"status"`
	Month  string           `json:"month,omitempty"`
	When   PaymentWhen      `json:"when,omitempty"`
	Note   string           `json:"note,omitempty"`
}
