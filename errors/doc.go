// Package errors provides the structured error type shared by stagekit
// packages. Every error carries a machine-readable code, the stage segment it
// was raised in, and whether it is fatal to the stage.
package errors
