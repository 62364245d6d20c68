package domain

import "errors"

var ErrInvalidPhoneNumber = errors.New("invalid phone number format, use 2547XXXXXXXX")
var ErrInvalidAmount = errors.New("amount must be a positive integer")
var ErrStatusNotFound = errors.New("payment status not found")
var ErrMissingMetadata = errors.New("callback metadata missing")
