package mqtt

// TopicPrefix is the root of every topic the exporter publishes.
const TopicPrefix = "autoexpose"

// Topics provides builders for the exporter's MQTT topics.
//
//	topics := mqtt.Topics{}
//	topics.Notification() // "autoexpose/notification"
type Topics struct{}

// SystemStatus returns the retained online/offline status topic.
func (Topics) SystemStatus() string {
	return TopicPrefix + "/system/status"
}

// Notification returns the topic carrying persistent notifications for
// the platform to display.
func (Topics) Notification() string {
	return TopicPrefix + "/notification"
}

// ExportCommand returns the topic on which manual exports are requested.
func (Topics) ExportCommand() string {
	return TopicPrefix + "/command/export"
}

// ExportEvent returns the topic on which finished export runs are announced.
func (Topics) ExportEvent() string {
	return TopicPrefix + "/event/export"
}
