// Mixer resolves attribute bags against a policy-and-telemetry
// configuration and dispatches the resulting instances to handlers.
//
// Usage:
//
//	# Serve checks with the configuration under ./config
//	mixer serve
//
//	# Serve with a runtime configuration file
//	mixer serve --config /etc/mixer/mixer.yaml
//
//	# Validate configuration files without starting anything
//	mixer validate ./config
//
//	# Dry-run a request against a configuration
//	mixer eval --policy ./config --set destination.service=ratings --set response.code=500
//
//	# Show version information
//	mixer version
package main

func main() {
	Execute()
}
