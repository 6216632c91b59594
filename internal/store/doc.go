// Package store persists the two JSON files the categorizer accumulates across runs.
//
// [SongStore] holds every liked song ever seen, in discovery order, and only grows.
// [CategoryStore] maps track IDs to their [models.Assignment] and is flushed after every batch.
//
// Both write through [shared.WriteFileAtomic], so an interrupted run leaves either the
// previous or the new file contents on disk, never a truncated file.
package store
