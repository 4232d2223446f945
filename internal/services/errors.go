package services

import "errors"

var (
	// ErrPageMarkerMissing means a batch OCR response had no usable section for a page.
	ErrPageMarkerMissing = errors.New("page marker missing from batch OCR response")
	// ErrEmptyResponse means a capability answered with no text.
	ErrEmptyResponse = errors.New("empty response from model")
	// ErrModelRefusal means the model declined to process the input.
	ErrModelRefusal = errors.New("model refused the request")
)
