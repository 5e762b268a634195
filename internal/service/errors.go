package service

import "errors"

var (
	ErrIntegrationNotFound     = errors.New("integration not found")
	ErrReauthorizationRequired = errors.New("reauthorization required")
	ErrFetchFailed             = errors.New("provider fetch failed")
	ErrMalformedRecord         = errors.New("malformed record")
	ErrEventNotFound           = errors.New("event not found")
	ErrInvalidScope            = errors.New("invalid edit scope")
	ErrUnsupportedProvider     = errors.New("unsupported provider")
	ErrTaskAlreadyLinked       = errors.New("task already linked to provider")
	ErrAttachmentUnavailable   = errors.New("attachment content unavailable")
	ErrInvalidWindow           = errors.New("invalid sync window")
)
