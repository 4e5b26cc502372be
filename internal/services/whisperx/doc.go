// Package whisperx runs the WhisperX speech-to-text engine through uvx and
// converts its JSON output into transcript segments.
//
// Configuration options (model, language, CUDA, VAD method) are passed via
// Config. Tests inject a CommandRunner so no Python tooling is required.
package whisperx
