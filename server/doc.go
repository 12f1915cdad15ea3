// Package server exposes sites, dataset documents, uploads and conversations
// over a JSON HTTP API built on gin.
//
// Answers to chat messages are streamed as server-sent events. Dataset
// listings are cached per dataset for a short time and dropped whenever an
// upload to that dataset registers a document.
package server
