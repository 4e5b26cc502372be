// Package config loads, normalizes, and validates broll configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// OPENAI_API_KEY, PEXELS_API_KEY, and PORT. The Config type centralizes every
// knob the daemon and CLI need so upload, output, and staging directories and
// external service credentials are discovered in one pass.
//
// Credentials are checked separately by ValidateCredentials so configuration
// and diagnostic commands work before keys are provisioned.
package config
