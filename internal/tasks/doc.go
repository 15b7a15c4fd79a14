// Package tasks mirrors RDE resources into the local snapshot cache with progress reporting.
//
// # Operations
//
//  1. [Fetcher.FetchBasics] : account-level collections
//     - self, root group, instruments, dataset templates, licenses
//     - each saved as one list snapshot (self.json, subGroup.json, ...)
//
//  2. [Fetcher.ListDatasets] : the dataset list, saved as dataset.json
//
//  3. [Fetcher.FetchDatasets] : dataset details in bulk
//     - worker pool (default [DefaultWorkers]) sharing one rate.Limiter
//     - existing snapshots are skipped unless forced
//     - per-dataset failures are collected, never aborting the run
//
// # Progress Reporting
//
// Operations send [ProgressUpdate] values on an optional channel. Sends never block: a full
// channel drops the update.
package tasks
