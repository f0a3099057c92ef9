// Package pipeline runs generation jobs: generate, render, narrate and
// synchronize a script into one promoted video, persisting progress on the
// job record.
//
// Entry points:
//   - Orchestrator.Run executes a fresh job synchronously (CLI render/regen)
//   - Orchestrator.Submit enqueues a job for the Worker
//   - Orchestrator.Process runs a job the Worker claimed
//
// A job moves queued -> processing -> completed | failed. Cancellation is an
// external write to the job record; the orchestrator notices it between
// stages and stops without touching the record again. Nothing is promoted out
// of the working directory unless every stage succeeded.
package pipeline
