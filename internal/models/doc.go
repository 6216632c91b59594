// Package models defines the records songsort moves between Spotify, the LLM, and its files.
//
// The package contains two groups of types:
//
// 1. Persisted records, stored as JSON files:
//   - [Track] : one liked song, identified by its Spotify track ID
//   - [Assignment] : the categories an LLM assigned to one track
//
// 2. Run bookkeeping, stored in the optional SQLite history:
//   - [Report] : counts and outcome of one pipeline run
//   - [SkippedBatch] : a batch abandoned after its retries ran out
//
// Track records are immutable once stored; assignments may be replaced by a later run.
package models
