// Package audio holds decoded waveforms and the optional speaker output.
// A Source is an immutable rendering of a document at one speed, backed by
// a WAV file in the scratch directory. Player drives oto/v3 from a Source.
package audio
