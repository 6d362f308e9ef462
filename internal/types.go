package internal

import (
	"context"
	"time"
)

// Record is one row of a record-set table keyed by column name.
type Record map[string]any

// RecordStore is the generic table read/write surface the backend exposes.
type RecordStore interface {
	Fetch(ctx context.Context, table string) ([]Record, error)
	Insert(ctx context.Context, table string, records []Record) ([]Record, error)
}

// RecordUpserter is implemented by stores that can replace rows sharing a key column value.
type RecordUpserter interface {
	Upsert(ctx context.Context, table, keyColumn string, record Record) (Record, error)
}

const (
	TablePolicies       = "policies"
	TableClaimTemplates = "claim_templates"
	TableClaimBatches   = "claim_batches"
)

// CanonicalField is one of the predefined claim-record fields spreadsheet columns map onto.
type CanonicalField string

const (
	FieldBenefitType    CanonicalField = "Benefit Type"
	FieldClaimantName   CanonicalField = "Claimant Name"
	FieldDateOfBirth    CanonicalField = "DateOfBirth"
	FieldGender         CanonicalField = "Gender"
	FieldRelation       CanonicalField = "Relation"
	FieldGroupNo        CanonicalField = "GroupNo"
	FieldMemberNo       CanonicalField = "MemberNo"
	FieldServiceBegDate CanonicalField = "ServiceBegDate"
	FieldServiceEndDate CanonicalField = "ServiceEndDate"
	FieldPaidDate       CanonicalField = "PaidDate"
	FieldProviderTIN    CanonicalField = "Provider TIN"
	FieldProviderNPI    CanonicalField = "Provider NPI"
	FieldDiagnosisCode  CanonicalField = "DiagnosisCode"
	FieldClaimNo        CanonicalField = "ClaimNo"
	FieldBilled         CanonicalField = "Billed"
	FieldPaid           CanonicalField = "Paid"
)

// CanonicalFields lists the fields in display order.
var CanonicalFields = []CanonicalField{
	FieldBenefitType,
	FieldClaimantName,
	FieldDateOfBirth,
	FieldGender,
	FieldRelation,
	FieldGroupNo,
	FieldMemberNo,
	FieldServiceBegDate,
	FieldServiceEndDate,
	FieldPaidDate,
	FieldProviderTIN,
	FieldProviderNPI,
	FieldDiagnosisCode,
	FieldClaimNo,
	FieldBilled,
	FieldPaid,
}

func IsCanonicalField(name string) bool {
	for _, f := range CanonicalFields {
		if string(f) == name {
			return true
		}
	}
	return false
}

type Policy struct {
	ID             int64
	Name           string
	Administrators []string
}

type FileRef struct {
	Name string
	Size int64
}

type ClaimBatch struct {
	ID                 string
	Policyholder       string
	ClaimAdministrator string
	TemplateName       string
	PaidFrom           time.Time
	PaidTo             time.Time
	ReceivedDate       *time.Time
	Description        string
	File               FileRef
}
