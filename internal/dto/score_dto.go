package dto

// ScoreBatchRequest updates many rubric scores at once. When ApplicationID is set the batch
// is guarded by a conflict pre-check against ObservedVersion.
type ScoreBatchRequest struct {
	RecordIDs       []uint  `json:"record_ids" validate:"required,min=1,max=500,dive,gt=0"`
	Scores          []int   `json:"scores" validate:"required,min=1,max=500"`
	SharedComment   *string `json:"shared_comment" validate:"omitempty,max=2000"`
	ApplicationID   *uint   `json:"application_id" validate:"omitempty,gt=0"`
	ObservedVersion *int64  `json:"observed_version" validate:"omitempty,min=0"`
	ObservedStatus  string  `json:"observed_status" validate:"omitempty,oneof=registered advisor_approved committee_approved document_approved document_cancelled"`
	OnConflict      string  `json:"on_conflict" validate:"omitempty,oneof=overwrite abort"`
}

// ScoreBatchResponse lists the records written and those that did not exist.
type ScoreBatchResponse struct {
	UpdatedIDs  []uint `json:"updated_ids"`
	NotFoundIDs []uint `json:"not_found_ids"`
	Aborted     bool   `json:"aborted"`
}
