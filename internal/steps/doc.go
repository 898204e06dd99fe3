// Package steps bridges the pipeline to the external automation commands
// that drive the browser for each stage.
package steps
