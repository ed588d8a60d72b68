package domain

import "slices"

// Platform is a partner that owns rides and receives webhooks.
type Platform struct {
	ID   string
	Name string
}

// AccessKey is an authorized platform credential.
type AccessKey struct {
	Platform    Platform
	Permissions []string
}

// Allows reports whether the key grants permission.
func (k *AccessKey) Allows(permission string) bool {
	return slices.Contains(k.Permissions, permission)
}
