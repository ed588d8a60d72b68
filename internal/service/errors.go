package service

import "errors"

var (
	// ErrInvalidInput is returned when request parameters fail validation.
	ErrInvalidInput = errors.New("invalid input")

	// ErrPaymentNotFound is returned when a payment does not exist on the ride.
	ErrPaymentNotFound = errors.New("payment not found")

	// ErrInvalidTerminateTime is returned when the terminate time precedes the start.
	ErrInvalidTerminateTime = errors.New("terminate time is before start time")

	// ErrDeviceInUse is returned when the device is not ready to be rented.
	ErrDeviceInUse = errors.New("device already in use")

	// ErrPhotoUploadNotTerminated is returned when a photo is uploaded for an active ride.
	ErrPhotoUploadNotTerminated = errors.New("photo can only be uploaded after ride termination")

	// ErrPhotoUploadTimeout is returned when the photo upload window has passed.
	ErrPhotoUploadTimeout = errors.New("photo upload window has expired")

	// ErrPhotoAlreadyUploaded is returned when the ride already has a photo.
	ErrPhotoAlreadyUploaded = errors.New("photo already uploaded")

	// ErrAlreadyTerminated is returned when operating on a terminated ride.
	ErrAlreadyTerminated = errors.New("ride already terminated")

	// ErrRideNotFound is returned when a ride does not exist for the platform.
	ErrRideNotFound = errors.New("ride not found")

	// ErrDeviceTooFar is returned when the rider is too far from the device.
	ErrDeviceTooFar = errors.New("device is too far away")

	// ErrRideBusy is returned when another operation holds the ride lock.
	ErrRideBusy = errors.New("ride is being processed")

	// ErrUnauthorized is returned when platform credentials are missing or invalid.
	ErrUnauthorized = errors.New("access key required")

	// ErrNotificationFailed is returned when a webhook could not be dispatched.
	ErrNotificationFailed = errors.New("notification failed")
)
