package domain

import (
	"errors"

	"github.com/smallbiznis/bookkeeper/pkg/calendar"
)

var (
	ErrInvalidID        = errors.New("invalid_id")
	ErrInvalidDate      = calendar.ErrInvalidDate
	ErrInvalidDateRange = errors.New("invalid_date_range")
	ErrNotFound         = errors.New("not_found")
)
