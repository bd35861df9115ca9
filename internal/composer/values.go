package composer

import (
	"strings"

	"backoffice/internal/gateway"
	"backoffice/internal/model"
	"backoffice/internal/workflow"

	"github.com/shopspring/decimal"
)

// Field names a form input.
type Field string

const (
	FieldType          Field = "type"
	FieldPersonnelType Field = "personnel_type"
	FieldRequestDate   Field = "request_date"
	FieldInvoiceNumber Field = "invoice_number"
	FieldAccountID     Field = "account_id"
	FieldAmount        Field = "amount"
	FieldProject       Field = "project"
	FieldResponsibleID Field = "responsible_id"
	FieldVehiclePlate  Field = "vehicle_plate"
	FieldVehicleNumber Field = "vehicle_number"
	FieldNote          Field = "note"
	FieldAttachment    Field = "attachment"
	FieldTotalAmount   Field = "total_amount"
	FieldEmployeeIDs   Field = "employee_ids"
)

// Values is the raw text state of a request form.
type Values struct {
	Type          string `json:"type"`
	PersonnelType string `json:"personnel_type"`
	RequestDate   string `json:"request_date"`
	InvoiceNumber string `json:"invoice_number"`
	AccountID     string `json:"account_id"`
	Amount        string `json:"amount"`
	Project       string `json:"project"`
	ResponsibleID string `json:"responsible_id"`
	VehiclePlate  string `json:"vehicle_plate"`
	VehicleNumber string `json:"vehicle_number"`
	Note          string `json:"note"`
}

func (v *Values) ptr(f Field) *string {
	switch f {
	case FieldType:
		return &v.Type
	case FieldPersonnelType:
		return &v.PersonnelType
	case FieldRequestDate:
		return &v.RequestDate
	case FieldInvoiceNumber:
		return &v.InvoiceNumber
	case FieldAccountID:
		return &v.AccountID
	case FieldAmount:
		return &v.Amount
	case FieldProject:
		return &v.Project
	case FieldResponsibleID:
		return &v.ResponsibleID
	case FieldVehiclePlate:
		return &v.VehiclePlate
	case FieldVehicleNumber:
		return &v.VehicleNumber
	case FieldNote:
		return &v.Note
	}
	return nil
}

func (v Values) get(f Field) string {
	if p := v.ptr(f); p != nil {
		return *p
	}
	return ""
}

// RequiredFields lists the inputs a submission needs for the given type
// and personnel type. Attachment is reported separately by
// AttachmentRequired.
func RequiredFields(t model.RequestType, p model.PersonnelType) []Field {
	fields := []Field{FieldType, FieldPersonnelType, FieldRequestDate}
	if t == model.RequestTypeExpense {
		fields = append(fields, FieldInvoiceNumber)
	}
	fields = append(fields, FieldAccountID, FieldAmount, FieldProject)
	if t == model.RequestTypeIncome {
		return fields
	}
	fields = append(fields, FieldNote)
	switch p {
	case model.PersonnelNomina:
		fields = append(fields, FieldResponsibleID)
	case model.PersonnelTransportista:
		fields = append(fields, FieldVehiclePlate, FieldVehicleNumber)
	}
	return fields
}

func AttachmentRequired(t model.RequestType) bool {
	return t == model.RequestTypeExpense || t == model.RequestTypeDiscount
}

// ParseAmount accepts "12.50" and "12,50".
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	comma, dot := strings.LastIndex(s, ","), strings.LastIndex(s, ".")
	// the separator that comes last is the decimal one
	if comma > dot {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	} else {
		s = strings.ReplaceAll(s, ",", "")
	}
	return decimal.NewFromString(s)
}

// validateValues checks v and builds the backend payload. The returned
// violations are empty when the input is valid.
func validateValues(v Values) (gateway.RequestInput, workflow.Violations) {
	viol := workflow.Violations{}
	t := model.RequestType(strings.TrimSpace(v.Type))
	p := model.PersonnelType(strings.TrimSpace(v.PersonnelType))

	for _, f := range RequiredFields(t, p) {
		viol.Required(string(f), v.get(f))
	}
	if t != "" && !t.IsValid() {
		viol[string(FieldType)] = workflow.CodeInvalid
	}
	if p != "" && !p.IsValid() {
		viol[string(FieldPersonnelType)] = workflow.CodeInvalid
	}

	in := gateway.RequestInput{
		Type:          t,
		PersonnelType: p,
		InvoiceNumber: strings.TrimSpace(v.InvoiceNumber),
		AccountID:     strings.TrimSpace(v.AccountID),
		Project:       strings.TrimSpace(v.Project),
		Note:          strings.TrimSpace(v.Note),
	}
	if t == model.RequestTypeIncome {
		in.InvoiceNumber = ""
	}

	if s := strings.TrimSpace(v.RequestDate); s != "" {
		d, err := model.ParseDate(s)
		if err != nil {
			viol[string(FieldRequestDate)] = workflow.CodeInvalid
		} else {
			in.RequestDate = d.String()
		}
	}
	if s := strings.TrimSpace(v.Amount); s != "" {
		amt, err := ParseAmount(s)
		switch {
		case err != nil:
			viol[string(FieldAmount)] = workflow.CodeInvalid
		case amt.IsNegative():
			viol[string(FieldAmount)] = workflow.CodeNegative
		default:
			in.Amount = amt
		}
	}

	switch p {
	case model.PersonnelNomina:
		in.ResponsibleID = strings.TrimSpace(v.ResponsibleID)
	case model.PersonnelTransportista:
		in.VehiclePlate = strings.TrimSpace(v.VehiclePlate)
		in.VehicleNumber = strings.TrimSpace(v.VehicleNumber)
	}
	return in, viol
}
