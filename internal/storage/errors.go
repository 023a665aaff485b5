package storage

import "errors"

var (
	ErrUnreachable        = errors.New("vector store unreachable")
	ErrAlreadyExists      = errors.New("collection already exists")
	ErrInvalidSchema      = errors.New("invalid collection schema")
	ErrCollectionNotFound = errors.New("collection not found")
	ErrDimensionMismatch  = errors.New("embedding dimension mismatch")
)
