package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"time"
)

type Fields struct {
	Service    string `json:"service"`
	OrderID    int64  `json:"order_id,omitempty"`
	EventID    string `json:"event_id,omitempty"`
	Session    string `json:"session,omitempty"`
	Event      string `json:"event,omitempty"`
	Status     string `json:"status,omitempty"`
	DurationMS int64  `json:"duration_ms,omitempty"`
	Message    string `json:"message,omitempty"`
	Error      string `json:"error,omitempty"`
}

var (
	mu  sync.Mutex
	out = log.New(os.Stderr, "", 0)
)

// SetOutput redirects structured lines, mainly for tests.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = log.New(w, "", 0)
}

// Log writes one JSON line. Empty optional fields are omitted.
func Log(f Fields) {
	line := struct {
		Fields
		Timestamp string `json:"timestamp"`
	}{f, time.Now().UTC().Format(time.RFC3339Nano)}
	data, err := json.Marshal(line)

	mu.Lock()
	defer mu.Unlock()
	if err != nil {
		out.Printf("{\"service\":%q,\"status\":\"log_error\",\"error\":%q}", f.Service, err.Error())
		return
	}
	out.Print(string(data))
}

// Printf adapts Log to the func(format, args...) hooks taken by the cart
// store and the order lifecycle.
func Printf(service string) func(format string, args ...any) {
	return func(format string, args ...any) {
		Log(Fields{Service: service, Message: fmt.Sprintf(format, args...)})
	}
}
