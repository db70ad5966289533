package models

import (
	"cmp"
	"slices"
)

// RequirementTable maps a CRO service type to the document types that must be
// present and signed before a submission of that type can be submitted.
type RequirementTable map[ServiceType][]DocumentType

// DefaultDocumentRequirements is used unless the config file overrides it.
var DefaultDocumentRequirements = RequirementTable{
	ServiceTypeBindingAssay: {DocumentTypeMTA, DocumentTypeNDA, DocumentTypeExperimentSpecification},
	ServiceTypeADME:         {DocumentTypeMTA, DocumentTypeNDA, DocumentTypeExperimentSpecification},
	ServiceTypeToxicity: {
		DocumentTypeMTA,
		DocumentTypeNDA,
		DocumentTypeExperimentSpecification,
		DocumentTypeServiceAgreement,
	},
	ServiceTypeSolubility:       {DocumentTypeMTA, DocumentTypeNDA, DocumentTypeExperimentSpecification},
	ServiceTypePharmacokinetics: {DocumentTypeMTA, DocumentTypeNDA, DocumentTypeExperimentSpecification},
	ServiceTypeCustom:           {DocumentTypeNDA, DocumentTypeServiceAgreement},
}

// ParseRequirementTable converts the raw config form into a table, rejecting
// unknown service or document types.
func ParseRequirementTable(raw map[string][]string) (RequirementTable, error) {
	table := make(RequirementTable, len(raw))
	for rawService, rawTypes := range raw {
		serviceType, err := ParseServiceType(rawService)
		if err != nil {
			return nil, err
		}
		types := make([]DocumentType, 0, len(rawTypes))
		for _, rawType := range rawTypes {
			docType, err := ParseDocumentType(rawType)
			if err != nil {
				return nil, err
			}
			types = append(types, docType)
		}
		table[serviceType] = types
	}
	return table, nil
}

// RequiredDocument is one line of a submission's document checklist.
type RequiredDocument struct {
	Type        DocumentType    `json:"type"`
	Description string          `json:"description"`
	Required    bool            `json:"required"`
	Completed   bool            `json:"completed"`
	DocumentID  *uint           `json:"document_id,omitempty"`
	Status      *DocumentStatus `json:"status,omitempty"`
}

// ResolveRequiredDocuments builds the checklist for serviceType in table order.
// For every required type the most recent matching document (uploaded_at, then
// id) is reported; the entry is completed only if that document is signed.
// An unknown service type yields an empty checklist.
func ResolveRequiredDocuments(table RequirementTable, serviceType ServiceType, documents []Document) []RequiredDocument {
	requiredTypes, ok := table[serviceType]
	if !ok {
		return []RequiredDocument{}
	}

	checklist := make([]RequiredDocument, 0, len(requiredTypes))
	for _, docType := range requiredTypes {
		entry := RequiredDocument{
			Type:        docType,
			Description: docType.Description(),
			Required:    true,
		}
		if latest := latestDocumentOfType(documents, docType); latest != nil {
			id := latest.ID
			status := latest.Status
			entry.DocumentID = &id
			entry.Status = &status
			entry.Completed = latest.IsSigned
		}
		checklist = append(checklist, entry)
	}
	return checklist
}

func latestDocumentOfType(documents []Document, docType DocumentType) *Document {
	var latest *Document
	for i := range documents {
		doc := &documents[i]
		if doc.Type != docType {
			continue
		}
		if latest == nil || compareDocumentRecency(doc, latest) > 0 {
			latest = doc
		}
	}
	return latest
}

func compareDocumentRecency(a, b *Document) int {
	if c := a.UploadedAt.Compare(b.UploadedAt); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

// HasRequiredDocuments is true when every checklist entry is completed. An
// empty checklist means no documents are required.
func HasRequiredDocuments(checklist []RequiredDocument) bool {
	return !slices.ContainsFunc(checklist, func(r RequiredDocument) bool {
		return r.Required && !r.Completed
	})
}

// MissingDocumentTypes lists the required types that are absent or unsigned.
func MissingDocumentTypes(checklist []RequiredDocument) []DocumentType {
	var missing []DocumentType
	for _, r := range checklist {
		if r.Required && !r.Completed {
			missing = append(missing, r.Type)
		}
	}
	return missing
}
