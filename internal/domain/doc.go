// Package domain defines the core entities of the review pipeline:
// tasks awaiting an automated reply, run records for subprocess
// executions, captured output chunks, and audit entries. It also owns
// the task state machine and the validation rules for each entity.
package domain
