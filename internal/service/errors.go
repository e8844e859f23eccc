package service

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrPriceUnavailable    = errors.New("price unavailable")
	ErrGameNotActive       = errors.New("game not active")
	ErrDuplicatePrediction = errors.New("duplicate prediction")
	ErrInvalidInput        = errors.New("invalid input")
)
