package utils

import (
	"encoding/json"
	"log"

	"chat-core/pkg/models"
)

// SafeJSONParse parses JSON safely
func SafeJSONParse(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

// EncodeFrame marshals an outbound socket frame once so the same bytes
// can be queued to many connections.
func EncodeFrame(event string, data interface{}) ([]byte, error) {
	return json.Marshal(models.OutFrame{Event: event, Data: data})
}

// LogError logs an error if it's not nil
func LogError(err error, context string) {
	if err != nil {
		log.Printf("Error [%s]: %v", context, err)
	}
}
