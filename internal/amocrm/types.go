package amocrm

import "encoding/json"

// Contact is an entry of GET /api/v4/contacts
type Contact struct {
	ID                 int           `json:"id"`
	Name               string        `json:"name"`
	ResponsibleUserID  int           `json:"responsible_user_id"`
	CustomFieldsValues []CustomField `json:"custom_fields_values"`
}

// CustomField holds the values of one custom field of an entity.
// FieldCode is empty for fields created by the account owner.
type CustomField struct {
	FieldID   int                `json:"field_id"`
	FieldName string             `json:"field_name"`
	FieldCode string             `json:"field_code"`
	FieldType string             `json:"field_type"`
	Values    []CustomFieldValue `json:"values"`
}

// CustomFieldValue keeps the raw JSON value; its type depends on the field type
type CustomFieldValue struct {
	Value    json.RawMessage `json:"value"`
	EnumID   int             `json:"enum_id,omitempty"`
	EnumCode string          `json:"enum_code,omitempty"`
}

// User is an entry of GET /api/v4/users
type User struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Pipeline is an entry of GET /api/v4/leads/pipelines
type Pipeline struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	IsMain   bool   `json:"is_main"`
	Embedded struct {
		Statuses []Status `json:"statuses"`
	} `json:"_embedded"`
}

// Status is a stage of a pipeline
type Status struct {
	ID         int    `json:"id"`
	Name       string `json:"name"`
	Color      string `json:"color"`
	PipelineID int    `json:"pipeline_id"`
	Sort       int    `json:"sort"`
}

// Lead is an entry of GET /api/v4/leads requested with=contacts
type Lead struct {
	ID                int    `json:"id"`
	Name              string `json:"name"`
	Price             int64  `json:"price"`
	ResponsibleUserID int    `json:"responsible_user_id"`
	StatusID          int    `json:"status_id"`
	PipelineID        int    `json:"pipeline_id"`
	CreatedAt         int64  `json:"created_at"`
	UpdatedAt         int64  `json:"updated_at"`
	Embedded          struct {
		Contacts []ContactRef `json:"contacts"`
	} `json:"_embedded"`
}

// Contacts returns the embedded contact stubs in API order
func (l *Lead) Contacts() []ContactRef {
	return l.Embedded.Contacts
}

// ContactRef is a contact stub embedded in a lead
type ContactRef struct {
	ID     int  `json:"id"`
	IsMain bool `json:"is_main"`
}

// listResponse is the HAL envelope shared by all list endpoints
type listResponse struct {
	Page  int `json:"_page"`
	Links struct {
		Next *struct {
			Href string `json:"href"`
		} `json:"next"`
	} `json:"_links"`
	Embedded map[string]json.RawMessage `json:"_embedded"`
}

func (r *listResponse) nextHref() string {
	if r.Links.Next == nil {
		return ""
	}
	return r.Links.Next.Href
}
