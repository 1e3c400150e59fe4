// Command seoaudit runs the SEO audit service.
//
// Subcommands:
//   - serve: HTTP API plus the job worker in one process.
//   - worker: the job worker alone, sharing a Redis store with an API process.
//   - audit <url>: queue one audit, run it inline and print the results JSON.
//
// Configuration comes from the file named by --config and SEOAUDIT_* env
// vars, e.g. SEOAUDIT_STORE_BACKEND=redis or SEOAUDIT_WORKER_BATCH_SIZE=10.
package main
