// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package workflow

import (
	"errors"
	"fmt"
)

var (
	// ErrMaturityFileCount is returned when the derivation tool does not
	// leave exactly one maturity requirement file.
	ErrMaturityFileCount = errors.New("expected exactly one maturity requirements file")
	// ErrKeyNotFound is returned when a required namelist key is missing.
	ErrKeyNotFound = errors.New("namelist key not found")
	// ErrBadStartDate is returned when RUN_STARTDATE has no leading year.
	ErrBadStartDate = errors.New("invalid RUN_STARTDATE")
)

// StageError wraps a failure with the stage it happened in.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
