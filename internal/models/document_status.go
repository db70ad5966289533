package models

import (
	"slices"
	"strings"

	"github.com/rxtech-lab/pharmalink/internal/apperrors"
)

type DocumentStatus string

const (
	DocumentStatusDraft            DocumentStatus = "DRAFT"
	DocumentStatusPendingSignature DocumentStatus = "PENDING_SIGNATURE"
	DocumentStatusSigned           DocumentStatus = "SIGNED"
	DocumentStatusRejected         DocumentStatus = "REJECTED"
	DocumentStatusExpired          DocumentStatus = "EXPIRED"
	DocumentStatusArchived         DocumentStatus = "ARCHIVED"
)

// DocumentStatuses is the fixed status dictionary. A document status must be
// one of its keys.
var DocumentStatuses = map[DocumentStatus]string{
	DocumentStatusDraft:            "Draft",
	DocumentStatusPendingSignature: "Pending Signature",
	DocumentStatusSigned:           "Signed",
	DocumentStatusRejected:         "Rejected",
	DocumentStatusExpired:          "Expired",
	DocumentStatusArchived:         "Archived",
}

// ParseDocumentStatus is the single validation point for document status strings.
func ParseDocumentStatus(s string) (DocumentStatus, error) {
	status := DocumentStatus(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := DocumentStatuses[status]; !ok {
		return "", apperrors.Validation("ParseDocumentStatus", "unknown document status %q", s)
	}
	return status, nil
}

func (s DocumentStatus) Label() string {
	return DocumentStatuses[s]
}

// IsFinal reports whether the signing flow for a document has ended.
func (s DocumentStatus) IsFinal() bool {
	return s == DocumentStatusSigned || s == DocumentStatusRejected || s == DocumentStatusExpired
}

type DocumentType string

const (
	DocumentTypeMTA                     DocumentType = "MTA"
	DocumentTypeNDA                     DocumentType = "NDA"
	DocumentTypeExperimentSpecification DocumentType = "EXPERIMENT_SPECIFICATION"
	DocumentTypeServiceAgreement        DocumentType = "SERVICE_AGREEMENT"
	DocumentTypeResultsReport           DocumentType = "RESULTS_REPORT"
	DocumentTypeQualityControl          DocumentType = "QUALITY_CONTROL"
	DocumentTypeAdditionalInstructions  DocumentType = "ADDITIONAL_INSTRUCTIONS"
	DocumentTypeSafetyDataSheet         DocumentType = "SAFETY_DATA_SHEET"
)

// DocumentTypeDescriptions doubles as the set of known document types.
var DocumentTypeDescriptions = map[DocumentType]string{
	DocumentTypeMTA:                     "Material Transfer Agreement",
	DocumentTypeNDA:                     "Non-Disclosure Agreement",
	DocumentTypeExperimentSpecification: "Experiment Specification",
	DocumentTypeServiceAgreement:        "Service Agreement",
	DocumentTypeResultsReport:           "Results Report",
	DocumentTypeQualityControl:          "Quality Control Report",
	DocumentTypeAdditionalInstructions:  "Additional Instructions",
	DocumentTypeSafetyDataSheet:         "Safety Data Sheet",
}

// SignatureRequiredDocumentTypes are the types that go through e-signature.
var SignatureRequiredDocumentTypes = []DocumentType{
	DocumentTypeMTA,
	DocumentTypeNDA,
	DocumentTypeServiceAgreement,
	DocumentTypeExperimentSpecification,
}

func ParseDocumentType(s string) (DocumentType, error) {
	t := DocumentType(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := DocumentTypeDescriptions[t]; !ok {
		return "", apperrors.Validation("ParseDocumentType", "unknown document type %q", s)
	}
	return t, nil
}

func (t DocumentType) Description() string {
	return DocumentTypeDescriptions[t]
}

func (t DocumentType) RequiresSignature() bool {
	return slices.Contains(SignatureRequiredDocumentTypes, t)
}
