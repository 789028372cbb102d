// File: internal/auth/emulator.go
package auth

import (
	"context"
	"net/http"
	"strings"
	"time"

	"starterkit_backend/internal/config"
)

// EmulatorDetector probes the Firebase auth emulator.
type EmulatorDetector struct {
	host   string
	client *http.Client
}

// NewEmulatorDetector creates a detector for the configured emulator. The
// detector never reports an emulator unless USE_AUTH_EMULATOR is set.
func NewEmulatorDetector(cfg *config.Config) *EmulatorDetector {
	host := ""
	if cfg.UseAuthEmulator {
		host = cfg.FirebaseAuthEmulatorHost
	}
	return NewEmulatorDetectorForHost(host)
}

// NewEmulatorDetectorForHost creates a detector for host ("host:port").
func NewEmulatorDetectorForHost(host string) *EmulatorDetector {
	return &EmulatorDetector{host: host, client: &http.Client{Timeout: 2 * time.Second}}
}

// Detect reports whether the emulator answers HTTP requests.
func (d *EmulatorDetector) Detect(ctx context.Context) bool {
	if d == nil || d.host == "" {
		return false
	}
	target := d.host
	if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
		target = "http://" + target
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target+"/", nil)
	if err != nil {
		return false
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode < http.StatusInternalServerError
}
