// Package tasks runs the liked-songs categorization pipeline with real-time progress reporting.
//
// # Pipeline
//
// [Engine.Run] performs one incremental run:
//
//  1. Fetch: [Fetcher] pages through the user's liked songs with bounded retries
//     - Rate limits honor the provider's Retry-After
//     - Authentication failures abort before anything is written
//  2. Merge songs: new tracks are appended to the song store
//  3. Compute delta: songs without a usable category assignment are queued
//  4. Classify: the queue is split into batches sent to the LLM one at a time
//     - Each successful batch is merged into the category store before the next starts
//     - A batch that exhausts its retries is skipped and retried on the next run
//  5. Summarize: the summary file is regenerated from the full category store
//
// Interrupting a run loses at most the batch in flight.
//
// # Progress Reporting
//
// Runs send [ProgressUpdate] values on an optional channel. Updates use select with
// default so a slow or absent reader never blocks the pipeline.
//
// # Run History
//
// The optional [RunRecorder] interface receives every finished [models.Report], including
// failed runs. Recording errors are logged and never fail the run.
//
// [Inspect] counts the stores without running the pipeline.
package tasks
