// Package config loads verifier settings from a YAML file, VERIFY_*
// environment variables and command-line flags.
package config

// Default configuration values.
const (
	// DefaultBufferSize is the block size used when hashing.
	DefaultBufferSize = "4KiB"

	// DefaultNotifyInterval is the percentage step between progress events.
	DefaultNotifyInterval = 5

	// DefaultOutput is the report format used when none is given.
	DefaultOutput = "pretty"

	// DefaultRetentionDays is how long run history is kept.
	DefaultRetentionDays = 30

	// DefaultDebounce is the quiet period, in milliseconds, the watcher waits
	// for before re-verifying.
	DefaultDebounce = 500

	// EnvPrefix prefixes every environment override, e.g. VERIFY_OUTPUT.
	EnvPrefix = "VERIFY"

	appName = "verifier"
)

// DefaultAlgorithms are the digests `verify calc` computes when -a is not given.
var DefaultAlgorithms = []string{"CRC32-REVERSED", "MD5", "SHA1", "SHA256"}
