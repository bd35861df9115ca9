package model

import (
	"strings"

	"github.com/shopspring/decimal"
)

// RequestType enum constants
type RequestType string

const (
	RequestTypeDiscount RequestType = "discount"
	RequestTypeExpense  RequestType = "expense"
	RequestTypeIncome   RequestType = "income"
)

func (t RequestType) IsValid() bool {
	switch t {
	case RequestTypeDiscount, RequestTypeExpense, RequestTypeIncome:
		return true
	}
	return false
}

// UniqueIDPrefix returns the category prefix the backend puts on unique_id
// ("G" gasto, "D" descuento, "I" ingreso).
func (t RequestType) UniqueIDPrefix() string {
	switch t {
	case RequestTypeExpense:
		return "G"
	case RequestTypeDiscount:
		return "D"
	case RequestTypeIncome:
		return "I"
	}
	return ""
}

// CategoryFromUniqueID decodes the category prefix of a unique_id.
func CategoryFromUniqueID(uniqueID string) (RequestType, bool) {
	switch {
	case strings.HasPrefix(uniqueID, "G"):
		return RequestTypeExpense, true
	case strings.HasPrefix(uniqueID, "D"):
		return RequestTypeDiscount, true
	case strings.HasPrefix(uniqueID, "I"):
		return RequestTypeIncome, true
	}
	return "", false
}

// PersonnelType enum constants
type PersonnelType string

const (
	PersonnelNomina        PersonnelType = "nomina"
	PersonnelTransportista PersonnelType = "transportista"
)

func (p PersonnelType) IsValid() bool {
	return p == PersonnelNomina || p == PersonnelTransportista
}

// RequestStatus enum constants
type RequestStatus string

const (
	RequestPending      RequestStatus = "pending"
	RequestReview       RequestStatus = "review"
	RequestInReposition RequestStatus = "in_reposition"
	RequestPaid         RequestStatus = "paid"
	RequestRejected     RequestStatus = "rejected"
)

func (s RequestStatus) IsValid() bool {
	switch s {
	case RequestPending, RequestReview, RequestInReposition, RequestPaid, RequestRejected:
		return true
	}
	return false
}

func (s RequestStatus) IsTerminal() bool {
	return s == RequestPaid || s == RequestRejected
}

// Request is one reimbursable line item (gasto, descuento or ingreso).
// ResponsibleID applies to nomina personnel, VehiclePlate/VehicleNumber to
// transportistas.
type Request struct {
	UniqueID      string          `json:"unique_id"`
	Type          RequestType     `json:"type"`
	PersonnelType PersonnelType   `json:"personnel_type"`
	RequestDate   Date            `json:"request_date"`
	InvoiceNumber string          `json:"invoice_number,omitempty"`
	AccountID     ID              `json:"account_id"`
	Amount        decimal.Decimal `json:"amount"`
	Project       string          `json:"project"`
	ResponsibleID ID              `json:"responsible_id,omitempty"`
	VehiclePlate  string          `json:"vehicle_plate,omitempty"`
	VehicleNumber string          `json:"vehicle_number,omitempty"`
	Note          string          `json:"note,omitempty"`
	Status        RequestStatus   `json:"status"`
	ReposicionID  ID              `json:"reposicion_id,omitempty"`
}

// RequestPatch is a partial update of the editable fields. Nil fields are
// left untouched.
type RequestPatch struct {
	RequestDate   *Date            `json:"request_date,omitempty"`
	InvoiceNumber *string          `json:"invoice_number,omitempty"`
	AccountID     *ID              `json:"account_id,omitempty"`
	Amount        *decimal.Decimal `json:"amount,omitempty"`
	Project       *string          `json:"project,omitempty"`
	ResponsibleID *ID              `json:"responsible_id,omitempty"`
	VehiclePlate  *string          `json:"vehicle_plate,omitempty"`
	VehicleNumber *string          `json:"vehicle_number,omitempty"`
	Note          *string          `json:"note,omitempty"`
	Status        *RequestStatus   `json:"status,omitempty"`
}

func (p RequestPatch) IsEmpty() bool {
	return p.RequestDate == nil && p.InvoiceNumber == nil && p.AccountID == nil &&
		p.Amount == nil && p.Project == nil && p.ResponsibleID == nil &&
		p.VehiclePlate == nil && p.VehicleNumber == nil && p.Note == nil && p.Status == nil
}

// ApplyTo copies the set fields onto r.
func (p RequestPatch) ApplyTo(r *Request) {
	if p.RequestDate != nil {
		r.RequestDate = *p.RequestDate
	}
	if p.InvoiceNumber != nil {
		r.InvoiceNumber = *p.InvoiceNumber
	}
	if p.AccountID != nil {
		r.AccountID = *p.AccountID
	}
	if p.Amount != nil {
		r.Amount = *p.Amount
	}
	if p.Project != nil {
		r.Project = *p.Project
	}
	if p.ResponsibleID != nil {
		r.ResponsibleID = *p.ResponsibleID
	}
	if p.VehiclePlate != nil {
		r.VehiclePlate = *p.VehiclePlate
	}
	if p.VehicleNumber != nil {
		r.VehicleNumber = *p.VehicleNumber
	}
	if p.Note != nil {
		r.Note = *p.Note
	}
	if p.Status != nil {
		r.Status = *p.Status
	}
}

// RequestFilter holds the server-side filters of GET /requests.
type RequestFilter struct {
	Status    RequestStatus
	Type      RequestType
	Period    string // yyyy-mm
	Search    string
	SortBy    string
	SortOrder string
	Page      int
	PerPage   int
}

// PageMeta mirrors the backend pagination block.
type PageMeta struct {
	CurrentPage int   `json:"current_page"`
	LastPage    int   `json:"last_page"`
	PerPage     int   `json:"per_page"`
	Total       int64 `json:"total"`
	HasMore     bool  `json:"has_more"`
}
