// Package main hosts the cdgrab CLI entrypoint and command graph.
//
// The Cobra command tree is the front-end for the download workflow: it
// resolves configuration and logging, submits a job, and prints the job's
// transcript as it grows. Tool inspection and configuration scaffolding live
// here too; the heavy lifting stays in the internal packages.
package main
