// Package cache stores synthesized PCM chunks so a document re-rendered at a
// speed it was already rendered at does not go back to the TTS engine.
// An in-memory LRU (L1) sits in front of a zstd-compressed disk cache (L2).
package cache
