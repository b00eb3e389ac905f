package provider

// TopicMessageNew is the bus topic carrying one event per newly recorded
// message. Delivery is a hint for live-view consumers: they must tolerate
// duplicates and out-of-order arrival.
const TopicMessageNew = "wapanel.message.new"

// MessagePayload is the minimal rendering payload for live consumers.
type MessagePayload struct {
	Id         string      `json:"id"`
	Text       string      `json:"text"`
	FromMe     bool        `json:"fromMe"`
	Timestamp  int64       `json:"timestamp"`
	Media      *MediaHint  `json:"media"`
	Location   interface{} `json:"location"`
	Source     string      `json:"source"`
	SenderName string      `json:"senderName"`
}

// MessageEvent is published on TopicMessageNew.
type MessageEvent struct {
	DeviceId string         `json:"deviceId"`
	ChatId   string         `json:"chatId"`
	Msg      MessagePayload `json:"msg"`
}

// EventSink receives live-update events. EventBus satisfies it.
type EventSink interface {
	Publish(topic string, args ...interface{})
}
