package model

import "encoding/json"

// ReferenceResource names a reference-data collection of the backend.
type ReferenceResource string

const (
	RefAccounts     ReferenceResource = "accounts"
	RefProjects     ReferenceResource = "projects"
	RefResponsibles ReferenceResource = "responsibles"
	RefTransports   ReferenceResource = "transports"
	RefAreas        ReferenceResource = "areas"
)

func (r ReferenceResource) IsValid() bool {
	switch r {
	case RefAccounts, RefProjects, RefResponsibles, RefTransports, RefAreas:
		return true
	}
	return false
}

// Option is one entry of a reference list. Responsibles come back with
// nombre_completo instead of name and transports carry the vehicle fields.
type Option struct {
	ID            ID     `json:"id"`
	Name          string `json:"name"`
	VehiclePlate  string `json:"vehicle_plate,omitempty"`
	VehicleNumber string `json:"vehicle_number,omitempty"`
}

func (o *Option) UnmarshalJSON(b []byte) error {
	var raw struct {
		ID             ID     `json:"id"`
		Name           string `json:"name"`
		NombreCompleto string `json:"nombre_completo"`
		VehiclePlate   string `json:"vehicle_plate"`
		VehicleNumber  string `json:"vehicle_number"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	o.ID = raw.ID
	o.Name = raw.Name
	if o.Name == "" {
		o.Name = raw.NombreCompleto
	}
	if o.Name == "" {
		o.Name = raw.VehiclePlate
	}
	o.VehiclePlate = raw.VehiclePlate
	o.VehicleNumber = raw.VehicleNumber
	return nil
}

// FindOption returns the option with the given id.
func FindOption(opts []Option, id ID) (Option, bool) {
	for _, o := range opts {
		if o.ID == id {
			return o, true
		}
	}
	return Option{}, false
}
