// Package config loads statekit configuration.
//
// Values are layered: defaults, then a TOML or YAML file chosen by
// extension, then STATEKIT_* environment variables:
//
//	STATEKIT_STORE_MAX_DISPATCH_DEPTH=20
//	STATEKIT_STORE_RECOVER_PANICS=false
//	STATEKIT_LOG_LEVEL=debug
//	STATEKIT_SCRIPT_PATH=hooks/audit.lua
//	STATEKIT_SCRIPT_TIMEOUT=250ms
package config
