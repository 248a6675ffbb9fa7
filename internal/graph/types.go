package graph

// Message is one inbound message from a conversation page, flattened from
// the nested response shape. Sender falls back to "Unknown" when the
// payload omits the from object.
type Message struct {
	Sender         string
	Body           string
	CreatedTime    string
	ConversationID string
}

// Wire types below mirror the conversation-listing response. All fields
// are optional on the wire; absent values decode to zero values so a
// partially populated payload degrades to empty strings and empty slices
// instead of failing.

type conversationListResponse struct {
	Data   []conversation  `json:"data"`
	Paging paging          `json:"paging"`
	Error  *RemoteAPIError `json:"error"`
}

type conversation struct {
	ID       string      `json:"id"`
	Messages messageList `json:"messages"`
}

type messageList struct {
	Data []wireMessage `json:"data"`
}

type wireMessage struct {
	Message     string       `json:"message"`
	From        *participant `json:"from"`
	CreatedTime string       `json:"created_time"`
}

type participant struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

type paging struct {
	Next string `json:"next"`
}

const unknownSender = "Unknown"

func (m wireMessage) toMessage(conversationID string) Message {
	sender := unknownSender
	if m.From != nil && m.From.Name != "" {
		sender = m.From.Name
	}
	return Message{
		Sender:         sender,
		Body:           m.Message,
		CreatedTime:    m.CreatedTime,
		ConversationID: conversationID,
	}
}
