// ABOUTME: Live API message type definitions
// ABOUTME: Defines structs for the setup, realtime input and server content messages
package protocol

import "encoding/json"

// SetupMessage is the first message sent on a new connection
type SetupMessage struct {
	Setup Setup `json:"setup"`
}

// Setup configures the model session
type Setup struct {
	Model                    string             `json:"model"`
	GenerationConfig         GenerationConfig   `json:"generationConfig"`
	SystemInstruction        *Content           `json:"systemInstruction,omitempty"`
	InputAudioTranscription  *struct{}          `json:"inputAudioTranscription,omitempty"`
	OutputAudioTranscription *struct{}          `json:"outputAudioTranscription,omitempty"`
	RealtimeInputConfig      *RealtimeInputConf `json:"realtimeInputConfig,omitempty"`
}

// GenerationConfig selects response modalities and voice
type GenerationConfig struct {
	ResponseModalities []string      `json:"responseModalities"`
	SpeechConfig       *SpeechConfig `json:"speechConfig,omitempty"`
}

// SpeechConfig selects the output voice
type SpeechConfig struct {
	VoiceConfig VoiceConfig `json:"voiceConfig"`
}

// VoiceConfig wraps a prebuilt voice
type VoiceConfig struct {
	PrebuiltVoiceConfig PrebuiltVoiceConfig `json:"prebuiltVoiceConfig"`
}

// PrebuiltVoiceConfig names a prebuilt voice
type PrebuiltVoiceConfig struct {
	VoiceName string `json:"voiceName"`
}

// RealtimeInputConf tunes server-side voice activity detection
type RealtimeInputConf struct {
	AutomaticActivityDetection *ActivityDetection `json:"automaticActivityDetection,omitempty"`
}

// ActivityDetection toggles automatic activity detection
type ActivityDetection struct {
	Disabled bool `json:"disabled"`
}

// Content is a list of parts with an optional role
type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

// Part is text or inline media
type Part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *InlineData `json:"inlineData,omitempty"`
}

// InlineData carries base64 media
type InlineData struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

// RealtimeInputMessage streams microphone audio
type RealtimeInputMessage struct {
	RealtimeInput RealtimeInput `json:"realtimeInput"`
}

// RealtimeInput holds media chunks
type RealtimeInput struct {
	MediaChunks []InlineData `json:"mediaChunks"`
}

// ClientContentMessage sends a complete text turn
type ClientContentMessage struct {
	ClientContent ClientContent `json:"clientContent"`
}

// ClientContent is a list of turns
type ClientContent struct {
	Turns        []Content `json:"turns"`
	TurnComplete bool      `json:"turnComplete"`
}

// ServerMessage is any message received from the server. Exactly one of
// the fields is normally set.
type ServerMessage struct {
	SetupComplete *json.RawMessage `json:"setupComplete,omitempty"`
	ServerContent *ServerContent   `json:"serverContent,omitempty"`
	GoAway        *GoAway          `json:"goAway,omitempty"`
	Error         *ServerError     `json:"error,omitempty"`
}

// ServerContent carries model audio, transcripts and turn signals
type ServerContent struct {
	ModelTurn           *Content       `json:"modelTurn,omitempty"`
	TurnComplete        bool           `json:"turnComplete,omitempty"`
	Interrupted         bool           `json:"interrupted,omitempty"`
	InputTranscription  *Transcription `json:"inputTranscription,omitempty"`
	OutputTranscription *Transcription `json:"outputTranscription,omitempty"`
}

// Transcription is a transcript fragment
type Transcription struct {
	Text string `json:"text"`
}

// GoAway announces that the server will close the connection soon
type GoAway struct {
	TimeLeft string `json:"timeLeft,omitempty"`
}

// ServerError is an error reported in-band by the server
type ServerError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status,omitempty"`
}
