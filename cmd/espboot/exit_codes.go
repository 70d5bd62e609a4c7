package main

import (
	"errors"
	"flag"

	espErrors "github.com/odvcencio/espboot/pkg/errors"
)

const (
	exitOK                   = 0
	exitFailure              = 1
	exitUsage                = 2
	exitToolchainUnavailable = 3
	exitTimeout              = 124
	exitInterrupted          = 130
)

type exitCoder interface {
	ExitCode() int
}

type exitError struct {
	code int
	err  error
}

func (e exitError) Error() string {
	if e.err == nil {
		return ""
	}
	return e.err.Error()
}

func (e exitError) Unwrap() error {
	return e.err
}

func (e exitError) ExitCode() int {
	if e.code == 0 {
		return exitFailure
	}
	return e.code
}

func withExitCode(err error, code int) error {
	if err == nil {
		return nil
	}
	return exitError{code: code, err: err}
}

func exitCodeForError(err error) int {
	if err == nil || errors.Is(err, flag.ErrHelp) {
		return exitOK
	}
	var coded exitCoder
	if errors.As(err, &coded) {
		return coded.ExitCode()
	}
	switch espErrors.GetCode(err) {
	case espErrors.ErrCodeConfigLoad, espErrors.ErrCodeConfigParse, espErrors.ErrCodeConfigInvalid,
		espErrors.ErrCodeInvalidInput:
		return exitUsage
	case espErrors.ErrCodeToolchainUnavailable:
		return exitToolchainUnavailable
	case espErrors.ErrCodeToolchainTimeout:
		return exitTimeout
	case espErrors.ErrCodeCancelled:
		return exitInterrupted
	}
	return exitFailure
}
