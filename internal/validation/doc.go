// Impressions Evaluation - Recommender Experiment Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/impressions-evaluation

// Package validation provides struct validation using go-playground/validator v10.
//
// A single validator instance is shared by the whole process so struct
// metadata is parsed once. Search requests, job arguments, configuration and
// status API query parameters are all validated through ValidateStruct.
//
// # Custom Tags
//
//   - fileroot: a non-empty file name root without path separators or "..".
//     Output file roots of hyperparameter searches use it.
//   - jobstatus: one of the job ledger statuses.
//
// # Usage
//
//	type Request struct {
//	    OutputFileNameRoot string `validate:"required,fileroot"`
//	    NumCases           int    `validate:"gte=1"`
//	}
//
//	if verr := validation.ValidateStruct(&req); verr != nil {
//	    return fmt.Errorf("invalid search request: %w", verr)
//	}
//
// Errors are reported as *RequestValidationError holding one ValidationError
// per failing field, with messages such as "NumCases must be greater than or
// equal to 1".
package validation
