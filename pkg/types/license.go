package types

import "time"

// License is the JSON view of a stored license shared by the API and its clients.
type License struct {
	Key       string     `json:"key"`
	Owner     string     `json:"owner"`
	ServerIP  *string    `json:"server_ip"`
	Active    bool       `json:"active"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at"`
	Notes     string     `json:"notes"`
}

type CreateLicenseRequest struct {
	Owner     string `json:"owner" validate:"required,max=128"`
	ExpiresAt string `json:"expires_at,omitempty" validate:"max=64"`
	Notes     string `json:"notes,omitempty" validate:"max=1024"`
}

// IssuedLicense is returned by create and genkey; it is the only response that carries a fresh key.
type IssuedLicense struct {
	Key       string     `json:"key"`
	Owner     string     `json:"owner"`
	ExpiresAt *time.Time `json:"expires_at"`
	Notes     string     `json:"notes"`
	CreatedAt time.Time  `json:"created_at"`
}

type RevokeLicenseRequest struct {
	Key string `json:"key" validate:"required,max=128"`
}

type RevokeLicenseResponse struct {
	Revoked bool   `json:"revoked"`
	Key     string `json:"key"`
	Status  string `json:"status"`
}

type ValidateLicenseRequest struct {
	Key string `json:"key"`
	IP  string `json:"ip,omitempty" validate:"omitempty,ip"`
}

type ValidateLicenseResponse struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
	Owner  string `json:"owner,omitempty"`
}

type GenerateKeyRequest struct {
	Actor string `json:"actor,omitempty" validate:"max=128"`
}
