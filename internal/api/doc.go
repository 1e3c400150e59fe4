// Package api exposes audit submission and polling over HTTP. Routes:
//   - POST /v1/audits/site and /v1/audits/page queue a job and return 202.
//   - GET /v1/jobs/{job_id} and /v1/jobs/{job_id}/results poll a job.
//   - GET /v1/queue/stats reports queue depth and job counts.
//   - GET /healthz, /readyz and /metrics for probes and Prometheus.
package api
