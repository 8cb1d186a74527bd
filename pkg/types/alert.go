package types

import "time"

// AlertSource identifies which part of the engine raised an alert.
type AlertSource string

const (
	AlertSourceProbe    AlertSource = "probe"
	AlertSourceDelivery AlertSource = "delivery"
	AlertSourceResource AlertSource = "resource"
)

const SeverityWarning = "warning"

// Alert is a notification-worthy event. Each alert is consumed exactly once
// by the dispatcher; persistence, if any, belongs to the notification sink.
type Alert struct {
	Severity  string      `json:"severity"`
	Subject   string      `json:"subject"`
	Body      string      `json:"body"`
	Source    AlertSource `json:"source"`
	Origin    string      `json:"origin"`
	Timestamp time.Time   `json:"ts"`
}
