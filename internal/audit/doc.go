// Package audit defines the core types shared across the audit pipeline:
// jobs, page records, analyzer findings, reports, the error taxonomy and the
// small collaborator interfaces (clock, id generation, archival) that the
// queue, crawler, analyzers and worker are built against.
package audit
