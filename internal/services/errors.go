// Package services defines the business logic of the living map: the
// connection ledger, the viewport query engine, notification fanout, rate
// limiting, and the async retry queue. This file centralizes common
// service-level error values so that they can be consistently returned by
// service methods and checked by callers.
//
// These errors are intended for internal use by the service layer and
// translation into user-facing messages or HTTP status codes should be
// performed at the handler layer.
package services

import "errors"

var (
	// ErrPrayerNotFound indicates that the referenced prayer does not exist.
	ErrPrayerNotFound = errors.New("prayer not found")

	// ErrConnectionNotFound indicates that the requested memorial connection
	// does not exist.
	ErrConnectionNotFound = errors.New("connection not found")

	// ErrNotificationNotFound indicates that the requested notification does
	// not exist or belongs to another recipient.
	ErrNotificationNotFound = errors.New("notification not found")

	// ErrItemNotFound indicates that the requested queue or dead-letter item
	// does not exist.
	ErrItemNotFound = errors.New("queue item not found")

	// ErrProtectedRecord is returned on any attempt to delete or mutate an
	// eternal record. Memorial lines are never removed, by design.
	ErrProtectedRecord = errors.New("memorial lines are eternal and cannot be deleted")

	// ErrInvalidBounds is returned when a bounding box is malformed, out of
	// range, or crosses the antimeridian (unsupported).
	ErrInvalidBounds = errors.New("invalid bounding box")

	// ErrInvalidCoordinates is returned when a latitude/longitude pair is
	// outside the WGS84 range.
	ErrInvalidCoordinates = errors.New("invalid coordinates")

	// ErrInvalidRadius is returned when a search radius is zero, negative,
	// or absurdly large.
	ErrInvalidRadius = errors.New("invalid radius")

	// ErrInvalidPriority is returned when a queue priority is negative.
	ErrInvalidPriority = errors.New("invalid priority")

	// ErrInvalidClassification is returned when a connection classification
	// is not one of the known variants.
	ErrInvalidClassification = errors.New("invalid connection classification")

	// ErrInvalidNotificationType is returned when a notification type is not
	// one of the known variants.
	ErrInvalidNotificationType = errors.New("invalid notification type")

	// ErrInvalidStatus is returned when a prayer visibility status is not one
	// of the known variants.
	ErrInvalidStatus = errors.New("invalid prayer status")

	// ErrEmptyContent is returned when a prayer is created with an empty body.
	ErrEmptyContent = errors.New("prayer content is empty")

	// ErrContentTooLong is returned when a prayer body exceeds the configured
	// maximum length.
	ErrContentTooLong = errors.New("prayer content too long")
)
