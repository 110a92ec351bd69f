package domain

import (
	"fmt"
	"strings"
)

// RequestSchema names the set of fields an ingestion request must carry.
type RequestSchema string

const (
	// SchemaBasic requires only text and id. Tenant isolation is off.
	SchemaBasic RequestSchema = "basic"
	// SchemaTenant adds title and the owning team and organization.
	SchemaTenant RequestSchema = "tenant"
	// SchemaMultiDocument additionally requires an explicit documentId.
	SchemaMultiDocument RequestSchema = "multi-document"
)

// Request field names as they appear on the wire
const (
	FieldText           = "text"
	FieldID             = "id"
	FieldTitle          = "title"
	FieldTeamID         = "teamId"
	FieldOrganizationID = "organizationId"
	FieldDocumentID     = "documentId"
	FieldQuery          = "query"
)

// ParseRequestSchema parses a schema name. An empty name selects SchemaTenant.
func ParseRequestSchema(name string) (RequestSchema, error) {
	switch RequestSchema(strings.ToLower(strings.TrimSpace(name))) {
	case "":
		return SchemaTenant, nil
	case SchemaBasic:
		return SchemaBasic, nil
	case SchemaTenant:
		return SchemaTenant, nil
	case SchemaMultiDocument:
		return SchemaMultiDocument, nil
	}
	return "", fmt.Errorf("unknown request schema %q", name)
}

// RequiredFields returns the ingestion fields the schema requires, in report order.
func (s RequestSchema) RequiredFields() []string {
	switch s {
	case SchemaBasic:
		return []string{FieldText, FieldID}
	case SchemaMultiDocument:
		return []string{FieldText, FieldID, FieldTitle, FieldTeamID, FieldOrganizationID, FieldDocumentID}
	default:
		return []string{FieldText, FieldID, FieldTitle, FieldTeamID, FieldOrganizationID}
	}
}

// TenantIsolation reports whether stored records and queries are scoped.
func (s RequestSchema) TenantIsolation() bool {
	return s != SchemaBasic
}

// ValidateDocument returns a ValidationError naming every required field
// that is missing or blank, or nil.
func (s RequestSchema) ValidateDocument(doc Document) error {
	values := map[string]string{
		FieldText:           doc.Text,
		FieldID:             doc.ID,
		FieldTitle:          doc.Title,
		FieldTeamID:         doc.Scope.TeamID,
		FieldOrganizationID: doc.Scope.OrganizationID,
		FieldDocumentID:     doc.DocumentID,
	}
	var missing []string
	for _, field := range s.RequiredFields() {
		if strings.TrimSpace(values[field]) == "" {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return NewValidationError(missing...)
	}
	return nil
}

// QueryFields returns the retrieval fields the schema requires.
func (s RequestSchema) QueryFields() []string {
	if s.TenantIsolation() {
		return []string{FieldQuery, FieldTeamID, FieldOrganizationID}
	}
	return []string{FieldQuery}
}

// ValidateQuery checks a retrieval request against the schema.
func (s RequestSchema) ValidateQuery(query string, scope Scope) error {
	values := map[string]string{
		FieldQuery:          query,
		FieldTeamID:         scope.TeamID,
		FieldOrganizationID: scope.OrganizationID,
	}
	var missing []string
	for _, field := range s.QueryFields() {
		if strings.TrimSpace(values[field]) == "" {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return NewValidationError(missing...)
	}
	return nil
}
