package mapping

import (
	"go.uber.org/zap"

	"claimpoint/internal"
	"claimpoint/internal/util"
)

// fieldAliases maps normalized header spellings to canonical fields.
var fieldAliases = map[string]internal.CanonicalField{
	"benefit":          internal.FieldBenefitType,
	"benefittype":      internal.FieldBenefitType,
	"claimant":         internal.FieldClaimantName,
	"claimantname":     internal.FieldClaimantName,
	"patientname":      internal.FieldClaimantName,
	"membername":       internal.FieldClaimantName,
	"dob":              internal.FieldDateOfBirth,
	"birthdate":        internal.FieldDateOfBirth,
	"dateofbirth":      internal.FieldDateOfBirth,
	"sex":              internal.FieldGender,
	"gender":           internal.FieldGender,
	"relation":         internal.FieldRelation,
	"relationship":     internal.FieldRelation,
	"group":            internal.FieldGroupNo,
	"groupno":          internal.FieldGroupNo,
	"groupnumber":      internal.FieldGroupNo,
	"member":           internal.FieldMemberNo,
	"memberno":         internal.FieldMemberNo,
	"memberid":         internal.FieldMemberNo,
	"membernumber":     internal.FieldMemberNo,
	"servicebegdate":   internal.FieldServiceBegDate,
	"servicestartdate": internal.FieldServiceBegDate,
	"dateofservice":    internal.FieldServiceBegDate,
	"fromdate":         internal.FieldServiceBegDate,
	"serviceenddate":   internal.FieldServiceEndDate,
	"todate":           internal.FieldServiceEndDate,
	"paiddate":         internal.FieldPaidDate,
	"datepaid":         internal.FieldPaidDate,
	"checkdate":        internal.FieldPaidDate,
	"providertin":      internal.FieldProviderTIN,
	"tin":              internal.FieldProviderTIN,
	"taxid":            internal.FieldProviderTIN,
	"providernpi":      internal.FieldProviderNPI,
	"npi":              internal.FieldProviderNPI,
	"diagnosiscode":    internal.FieldDiagnosisCode,
	"diagnosis":        internal.FieldDiagnosisCode,
	"dx":               internal.FieldDiagnosisCode,
	"icd10":            internal.FieldDiagnosisCode,
	"claimno":          internal.FieldClaimNo,
	"claimnumber":      internal.FieldClaimNo,
	"claimid":          internal.FieldClaimNo,
	"billed":           internal.FieldBilled,
	"billedamount":     internal.FieldBilled,
	"billedamt":        internal.FieldBilled,
	"charges":          internal.FieldBilled,
	"paid":             internal.FieldPaid,
	"paidamount":       internal.FieldPaid,
	"paidamt":          internal.FieldPaid,
	"amountpaid":       internal.FieldPaid,
}

const suggestMinScore = 0.88

// SuggestField guesses the canonical field for a column label.
func SuggestField(label string) (internal.CanonicalField, bool) {
	norm := util.NormalizeLabel(label)
	if norm == "" {
		return "", false
	}
	if f, ok := fieldAliases[norm]; ok {
		return f, true
	}

	best, bestScore := internal.CanonicalField(""), 0.0
	for _, f := range internal.CanonicalFields {
		if score := util.DiceCoefficient(norm, util.NormalizeLabel(string(f))); score > bestScore {
			best, bestScore = f, score
		}
	}
	if bestScore >= suggestMinScore {
		return best, true
	}
	return "", false
}

// Suggest pairs the active sheet's unmapped columns with guessed canonical fields. Columns
// already mapped and fields already used on the sheet are left alone.
func (s *Session) Suggest() []Pair {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhaseMapping {
		return nil
	}
	m := s.mappings[s.activeSheet]
	used := map[string]bool{}
	for _, p := range m.Pairs() {
		used[p.Target] = true
	}

	var applied []Pair
	for _, column := range s.columns[s.activeSheet] {
		if _, mapped := m.Target(column); mapped {
			continue
		}
		field, ok := SuggestField(column)
		if !ok || used[string(field)] {
			continue
		}
		used[string(field)] = true
		s.commit(s.activeSheet, column, string(field))
		applied = append(applied, Pair{Source: column, Target: string(field)})
	}
	s.logger.Debug("suggested pairs", zap.String("sheet", s.activeSheet), zap.Int("pairs", len(applied)))
	return applied
}
