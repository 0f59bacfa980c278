// Package validation checks configuration structs against their `validate`
// tags with go-playground/validator and reports failures as AppErrors.
package validation
