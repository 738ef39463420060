package audit

import "errors"

var ErrInvalidRange = errors.New("date range end is before start")
