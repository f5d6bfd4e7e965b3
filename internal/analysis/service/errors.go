package service

import (
	"errors"

	"portal_analysis_backend/platform/apperr"
)

const (
	opProcess = "analysis.service.process"
	opSubmit  = "analysis.service.submit"
	opGet     = "analysis.service.get"
	opRefresh = "analysis.service.refresh"
)

// ErrTransientStorage marks a failure that rolled back and is safe to retry.
var ErrTransientStorage = errors.New("transient storage failure")

func transient(op string, err error) error {
	return apperr.Unavailable("analysis result could not be stored; retry later").
		WithOp(op).
		WithErr(errors.Join(ErrTransientStorage, err))
}
