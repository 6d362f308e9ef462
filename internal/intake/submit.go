package intake

import (
	"context"

	"github.com/google/uuid"

	"claimpoint/internal"
	"claimpoint/internal/util"
)

// Submitter receives a validated claim batch and returns its stored id.
type Submitter interface {
	Submit(ctx context.Context, batch internal.ClaimBatch) (string, error)
}

// RecordSubmitter writes batches to the claim_batches table.
type RecordSubmitter struct {
	Records internal.RecordStore
}

func (s RecordSubmitter) Submit(ctx context.Context, batch internal.ClaimBatch) (string, error) {
	if batch.ID == "" {
		batch.ID = uuid.NewString()
	}
	record := internal.Record{
		"id":                  batch.ID,
		"policyholder":        batch.Policyholder,
		"claim_administrator": batch.ClaimAdministrator,
		"template_name":       batch.TemplateName,
		"paid_from":           util.FormatDate(batch.PaidFrom),
		"paid_to":             util.FormatDate(batch.PaidTo),
		"description":         batch.Description,
		"file_name":           batch.File.Name,
		"file_size":           batch.File.Size,
	}
	if batch.ReceivedDate != nil {
		record["received_date"] = util.FormatDate(*batch.ReceivedDate)
	}

	stored, err := s.Records.Insert(ctx, internal.TableClaimBatches, []internal.Record{record})
	if err != nil {
		return "", err
	}
	if len(stored) > 0 {
		if id, ok := stored[0]["id"].(string); ok && id != "" {
			return id, nil
		}
	}
	return batch.ID, nil
}
