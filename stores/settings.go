package stores

import (
	"github.com/tidwall/gjson"
	log "github.com/sirupsen/logrus"
)

const defaultTemperature = 0.7

// Settings is the per-conversation metadata kept in the metadata column
type Settings struct {
	SystemPrompt string   `json:"system_prompt"`
	Temperature  float64  `json:"temperature"`
	Tags         []string `json:"tags"`
}

func DefaultSettings() Settings {
	return Settings{Temperature: defaultTemperature, Tags: []string{}}
}

// ParseSettings reads settings from a JSON document. Missing or mistyped
// fields keep their default value; an invalid document yields the defaults.
func ParseSettings(raw string) Settings {
	s := DefaultSettings()
	if raw == "" || !gjson.Valid(raw) {
		return s
	}

	doc := gjson.Parse(raw)
	if v := doc.Get("system_prompt"); v.Type == gjson.String {
		s.SystemPrompt = v.Str
	}
	if v := doc.Get("temperature"); v.Type == gjson.Number && v.Num >= 0 && v.Num <= 2 {
		s.Temperature = v.Num
	}
	if v := doc.Get("tags"); v.IsArray() {
		for _, tag := range v.Array() {
			if tag.Type == gjson.String && tag.Str != "" {
				s.Tags = append(s.Tags, tag.Str)
			}
		}
	}
	return s
}

func parseMessages(conversationId, raw string) []Message {
	messages := []Message{}
	if raw == "" {
		return messages
	}
	if !gjson.Valid(raw) {
		log.Warnf("Conversation %s has unreadable messages, starting empty", conversationId)
		return messages
	}

	gjson.Parse(raw).ForEach(func(_, m gjson.Result) bool {
		messages = append(messages, Message{
			Id:        m.Get("id").String(),
			Role:      m.Get("role").String(),
			Content:   m.Get("content").String(),
			CreatedAt: m.Get("created_at").Int(),
		})
		return true
	})
	return messages
}
