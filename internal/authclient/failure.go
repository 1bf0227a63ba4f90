package authclient

import (
	"encoding/json"
	"fmt"
)

// Kind tells apart the ways an auth request can fail.
type Kind int

const (
	// KindStructured carries a message extracted from the response body.
	KindStructured Kind = iota
	// KindUnstructured means the body held no usable message.
	KindUnstructured
	// KindNetwork means no response was received.
	KindNetwork
)

func (k Kind) String() string {
	switch k {
	case KindStructured:
		return "structured"
	case KindUnstructured:
		return "unstructured"
	case KindNetwork:
		return "network"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

const (
	NetworkMessage = "Network error: Please check your connection and try again"
	SignInFallback = "Unable to sign you in right now. Please verify your credentials."
	SignUpFallback = "We could not create your account. Please try again."
	NoTokenMessage = "Authentication failed: No token received"
)

// Failure is the error returned by SignIn and SignUp. Message is always
// presentable to the user.
type Failure struct {
	Kind    Kind
	Message string
	Status  int
	Err     error
}

func (f *Failure) Error() string {
	if f.Status != 0 {
		return fmt.Sprintf("auth %s failure (status %d): %s", f.Kind, f.Status, f.Message)
	}
	return fmt.Sprintf("auth %s failure: %s", f.Kind, f.Message)
}

func (f *Failure) Unwrap() error { return f.Err }

// ParseFailure classifies a rejected response. Message sources, in order:
// error.message, error (when a string), message. With none of them the
// failure is unstructured and Message is empty until the caller supplies a
// fallback.
func ParseFailure(status int, body []byte) *Failure {
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil || payload == nil {
		return &Failure{Kind: KindUnstructured, Status: status}
	}

	if msg := extractMessage(payload); msg != "" {
		return &Failure{Kind: KindStructured, Message: msg, Status: status}
	}
	return &Failure{Kind: KindUnstructured, Status: status}
}

func extractMessage(payload map[string]any) string {
	switch e := payload["error"].(type) {
	case map[string]any:
		if msg, ok := e["message"].(string); ok && msg != "" {
			return msg
		}
	case string:
		if e != "" {
			return e
		}
	}
	if msg, ok := payload["message"].(string); ok && msg != "" {
		return msg
	}
	return ""
}

func networkFailure(err error) *Failure {
	return &Failure{Kind: KindNetwork, Message: NetworkMessage, Err: err}
}

func (f *Failure) withFallback(msg string) *Failure {
	if f.Message == "" {
		f.Message = msg
	}
	return f
}
