// Package security covers the trust decisions of the app: host posture at
// startup, credential storage, authentication fallback, transaction PINs
// and payload signing.
package security

import (
	"context"
	"os"

	"jaudi-finance-backend/internal/models"
)

// PostureCheck inspects the host environment at startup. A tampered host
// (rooted device image, missing signing material) aborts the boot sequence.
type PostureCheck struct {
	signingKey string
}

func NewPostureCheck(signingKey string) *PostureCheck {
	return &PostureCheck{signingKey: signingKey}
}

func (p *PostureCheck) Check(_ context.Context) (models.SecurityCheck, error) {
	return models.SecurityCheck{
		IsRooted:            hostRooted(),
		IsEmulator:          hostEmulated(),
		HasValidCertificate: p.signingKey != "",
	}, nil
}

// hostRooted looks for su-style binaries on the path, the classic root
// marker on mobile images.
func hostRooted() bool {
	for _, path := range []string{"/system/bin/su", "/system/xbin/su", "/sbin/su"} {
		if _, err := os.Stat(path); err == nil {
			return true
		}
	}
	return false
}

func hostEmulated() bool {
	return os.Getenv("EMULATOR") == "true"
}
