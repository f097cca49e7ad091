package core

import "errors"

// Error classes shared by every pipeline component. Components wrap them with
// fmt.Errorf("%w: ...") so callers can test the class with errors.Is.
var (
	// ErrConfiguration marks invalid hyperparameters or data that makes a
	// configuration unusable (e.g. a feature that is never observed).
	ErrConfiguration = errors.New("configuration error")

	// ErrDataShape marks empty datasets and mismatched row/column counts.
	ErrDataShape = errors.New("data shape error")

	// ErrMetricUndefined marks a quality metric that cannot be computed for a
	// degenerate label set.
	ErrMetricUndefined = errors.New("metric undefined")
)
