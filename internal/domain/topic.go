package domain

// Topic is a named logical channel connections subscribe to. The set is
// closed: topics are routing labels, not resources that get created or
// destroyed.
type Topic string

const (
	TopicThreatUpdates Topic = "threat_updates"
	TopicWatchlist     Topic = "watchlist"
	TopicAlerts        Topic = "alerts"
	TopicSystemStatus  Topic = "system_status"
)

// Topics lists every valid topic in a fixed order.
func Topics() []Topic {
	return []Topic{TopicThreatUpdates, TopicWatchlist, TopicAlerts, TopicSystemStatus}
}

// ParseTopic validates a client-supplied topic name.
func ParseTopic(s string) (Topic, error) {
	switch Topic(s) {
	case TopicThreatUpdates, TopicWatchlist, TopicAlerts, TopicSystemStatus:
		return Topic(s), nil
	default:
		return "", ErrUnknownTopic
	}
}
