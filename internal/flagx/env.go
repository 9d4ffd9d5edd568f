package flagx

import "os"

// EnvOverride replaces *dst with the value of the named environment
// variable when it is set and non-empty. It reports whether it did.
func EnvOverride(dst *string, name string) bool {
	v, ok := os.LookupEnv(name)
	if !ok || v == "" {
		return false
	}
	*dst = v
	return true
}
