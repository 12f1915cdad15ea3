// Package upstream is the HTTP client for the managed workflow, knowledge
// dataset and chat API that backs plantdesk.
//
// Three bearer tokens are used: one for workflow runs, one for dataset
// document management and one for chat. Non-2xx answers are returned as the
// typed errors of package core, carrying the status and the response body
// verbatim.
package upstream
