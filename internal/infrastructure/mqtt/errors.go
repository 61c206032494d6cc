package mqtt

import "errors"

// Errors returned by the MQTT client and publisher. Check with errors.Is.
var (
	ErrNotConnected      = errors.New("mqtt: client not connected")
	ErrConnectionFailed  = errors.New("mqtt: connection failed")
	ErrPublishFailed     = errors.New("mqtt: publish failed")
	ErrSubscribeFailed   = errors.New("mqtt: subscribe failed")
	ErrUnsubscribeFailed = errors.New("mqtt: unsubscribe failed")

	// ErrInvalidQoS is returned for QoS levels other than 0, 1 or 2.
	ErrInvalidQoS   = errors.New("mqtt: invalid QoS level (must be 0, 1, or 2)")
	ErrInvalidTopic = errors.New("mqtt: topic cannot be empty")

	// ErrQueueFull is returned by AsyncPublisher.Enqueue when the outbound queue is saturated.
	ErrQueueFull = errors.New("mqtt: publish queue full")

	// ErrPublisherClosed is returned by AsyncPublisher.Enqueue after Close.
	ErrPublisherClosed = errors.New("mqtt: publisher closed")
)
