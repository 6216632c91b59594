// Package classifier assigns genre, mood, and era categories to batches of tracks with an LLM.
//
// One prompt is built per batch ([BuildPrompt]) and sent through a [services.Completer].
// Failed requests are retried for the whole batch with exponential backoff; a batch whose
// attempts run out is reported as [shared.ErrBatchSkipped] and its tracks stay unclassified.
//
// Replies are decoded by [Parse], which yields one tagged [Result] per track. A malformed or
// missing entry only affects its own track: the rest of the batch is kept, and nothing is
// ever filled in with a default category.
package classifier
