// Package ingestion registers uploaded documents into a site's knowledge dataset.
//
// The Pipeline type runs the full path for one document:
//   - Size check against the configured ceiling (no network call on failure)
//   - Local text extraction
//   - The remote preprocessing workflow, retried on timeouts only
//   - Registration of the original extracted text in the dataset
//
// UploadRaw skips extraction and the workflow and hands the raw bytes to the
// dataset. Batches run on a worker pool and report results in input order.
// A history record is written for every successful registration; failures to
// write it are logged but do not fail the ingestion.
package ingestion
