package dto

import "errors"

// BatchScoreRequest scores a set of companies, or every company when
// All is set.
type BatchScoreRequest struct {
	CompanyIDs  []string `json:"company_ids,omitempty"`
	All         bool     `json:"all,omitempty"`
	Concurrency int      `json:"concurrency,omitempty"`
	Persist     bool     `json:"persist,omitempty"`
}

// Validate performs validation on BatchScoreRequest
func (r *BatchScoreRequest) Validate() error {
	if !r.All && len(r.CompanyIDs) == 0 {
		return errors.New("company_ids cannot be empty unless all is set")
	}
	if r.Concurrency < 0 {
		return errors.New("concurrency cannot be negative")
	}
	return nil
}
