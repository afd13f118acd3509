package utils

// MaskSecret keeps the first few characters of a credential for log
// correlation and hides the rest.
func MaskSecret(secret string) string {
	const keep = 4
	if len(secret) <= keep {
		return "*****"
	}
	return secret[:keep] + "*****"
}
