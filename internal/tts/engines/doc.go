// Package engines contains the TTS engines: Piper (offline), gTTS via
// gtts-cli and ffmpeg (online), and a deterministic mock.
// Each engine implements tts.Engine.
package engines
