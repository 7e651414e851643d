package instance

import "os"

// GetID names the running process for logs. BAZAAR_INSTANCE_ID wins over the
// platform dyno name; local runs fall back to "local".
func GetID() string {
	for _, env := range []string{"BAZAAR_INSTANCE_ID", "DYNO"} {
		if id := os.Getenv(env); id != "" {
			return id
		}
	}
	return "local"
}
