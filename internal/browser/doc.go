// Package browser wraps the local browser window-manager HTTP API used to
// create, open, and tear down remote-debuggable browser windows.
package browser
