package domain

import "time"

// MonitoringStatus is the post-termination review state of a ride.
type MonitoringStatus string

const (
	MonitoringStatusBeforeConfirm      MonitoringStatus = "BEFORE_CONFIRM"
	MonitoringStatusConfirmed          MonitoringStatus = "CONFIRMED"
	MonitoringStatusWrongParking       MonitoringStatus = "WRONG_PARKING"
	MonitoringStatusDangerParking      MonitoringStatus = "DANGER_PARKING"
	MonitoringStatusInCollectionArea   MonitoringStatus = "IN_COLLECTION_AREA"
	MonitoringStatusWrongPicture       MonitoringStatus = "WRONG_PICTURE"
	MonitoringStatusNoPicture          MonitoringStatus = "NO_PICTURE"
	MonitoringStatusCollectedKickboard MonitoringStatus = "COLLECTED_KICKBOARD"
	MonitoringStatusTowedKickboard     MonitoringStatus = "TOWED_KICKBOARD"
)

// Valid reports whether s is a known monitoring status.
func (s MonitoringStatus) Valid() bool {
	switch s {
	case MonitoringStatusBeforeConfirm, MonitoringStatusConfirmed,
		MonitoringStatusWrongParking, MonitoringStatusDangerParking,
		MonitoringStatusInCollectionArea, MonitoringStatusWrongPicture,
		MonitoringStatusNoPicture, MonitoringStatusCollectedKickboard,
		MonitoringStatusTowedKickboard:
		return true
	}
	return false
}

// IsFinal reports whether the status ends the monitoring workflow
// with the device physically recovered.
func (s MonitoringStatus) IsFinal() bool {
	return s == MonitoringStatusTowedKickboard || s == MonitoringStatusCollectedKickboard
}

// MonitoringLogType classifies a monitoring log entry.
type MonitoringLogType string

const (
	MonitoringLogTypeInfo        MonitoringLogType = "INFO"
	MonitoringLogTypeChanged     MonitoringLogType = "CHANGED"
	MonitoringLogTypeSendMessage MonitoringLogType = "SEND_MESSAGE"
	MonitoringLogTypeAddPayment  MonitoringLogType = "ADD_PAYMENT"
)

// MonitoringLog is an append-only audit entry for a ride.
type MonitoringLog struct {
	ID        string
	RideID    string
	LogType   MonitoringLogType
	Message   string
	CreatedAt time.Time
}
