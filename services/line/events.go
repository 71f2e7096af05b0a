package line

const (
	EventFollow   = "follow"
	EventUnfollow = "unfollow"
	EventMessage  = "message"

	MessageText = "text"
)

// WebhookPayload is the body the platform posts to the webhook.
type WebhookPayload struct {
	Destination string  `json:"destination"`
	Events      []Event `json:"events"`
}

type Event struct {
	Type       string          `json:"type"`
	ReplyToken string          `json:"replyToken"`
	Timestamp  int64           `json:"timestamp"`
	Source     Source          `json:"source"`
	Message    *MessageContent `json:"message,omitempty"`
}

type Source struct {
	Type    string `json:"type"`
	UserID  string `json:"userId"`
	GroupID string `json:"groupId,omitempty"`
	RoomID  string `json:"roomId,omitempty"`
}

type MessageContent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Text string `json:"text"`
}

// TextMessage is the outbound text message object.
type TextMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func NewTextMessage(text string) TextMessage {
	return TextMessage{Type: MessageText, Text: text}
}
