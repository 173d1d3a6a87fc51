package http

import (
	"encoding/xml"
	"net/http"
)

// messagingResponse is the TwiML document Twilio expects back from an SMS
// webhook. An empty Response (no Message elements) tells Twilio to send
// nothing.
type messagingResponse struct {
	XMLName  xml.Name `xml:"Response"`
	Messages []string `xml:"Message,omitempty"`
}

// writeTwiML renders a TwiML reply. texts may be empty for a silent ack.
func writeTwiML(w http.ResponseWriter, texts ...string) {
	doc := messagingResponse{}
	for _, t := range texts {
		if t != "" {
			doc.Messages = append(doc.Messages, t)
		}
	}

	body, err := xml.Marshal(doc)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(xml.Header))
	w.Write(body)
}
