// Package config provides configuration management for mirror.
package config

// Default configuration values for mirror.
const (
	// DefaultInterval is the pass interval in seconds.
	DefaultInterval = 30

	// DefaultCompare is the comparator used to decide whether a file needs copying.
	DefaultCompare = "content"

	// DefaultOnError is the error policy for failed filesystem operations.
	DefaultOnError = "fail"

	// DefaultMaxDepth bounds how deep a pass descends into the source tree.
	DefaultMaxDepth = 1024

	// DefaultRetentionDays is the number of days pass history is kept.
	DefaultRetentionDays = 30

	// DefaultLogLevel is the level for both log sinks.
	DefaultLogLevel = "info"
)

// Comparators lists the accepted values of the compare setting.
var Comparators = []string{"content", "mtime"}

// ErrorPolicies lists the accepted values of the on_error setting.
var ErrorPolicies = []string{"fail", "continue"}
