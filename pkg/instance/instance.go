package instance

import "os"

// GetID returns an identifier for this process. Realtime fan-out uses it to
// recognise events it published itself.
func GetID() string {
	if id := os.Getenv("GT_INSTANCE_ID"); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "instance-0"
}
