package messaging

import "github.com/segmentio/kafka-go"

const (
	// KindHeader names the notification kind so consumers can route without
	// decoding the payload.
	KindHeader = "kind"
	// ErrorHeader carries the handler error on dead-lettered messages.
	ErrorHeader = "error"
)

// MessageCarrier exposes kafka message headers as an OTel text map carrier
// and gives typed access to the storefront headers.
type MessageCarrier struct {
	msg *kafka.Message
}

func NewMessageCarrier(msg *kafka.Message) *MessageCarrier {
	return &MessageCarrier{msg: msg}
}

func (c *MessageCarrier) Get(key string) string {
	if i := c.headerIndex(key); i >= 0 {
		return string(c.msg.Headers[i].Value)
	}
	return ""
}

// Set replaces the header named key, so a re-published message never carries
// two trace parents or two kinds.
func (c *MessageCarrier) Set(key, value string) {
	if i := c.headerIndex(key); i >= 0 {
		c.msg.Headers[i].Value = []byte(value)
		return
	}
	c.msg.Headers = append(c.msg.Headers, kafka.Header{
		Key:   key,
		Value: []byte(value),
	})
}

func (c *MessageCarrier) Keys() []string {
	keys := make([]string, len(c.msg.Headers))
	for i, h := range c.msg.Headers {
		keys[i] = h.Key
	}
	return keys
}

func (c *MessageCarrier) Kind() string {
	return c.Get(KindHeader)
}

func (c *MessageCarrier) headerIndex(key string) int {
	for i, h := range c.msg.Headers {
		if h.Key == key {
			return i
		}
	}
	return -1
}
