// Package main is the entry point for the SmartNotes server.
//
// MAIN PACKAGE IN GO:
// The main package should be kept minimal. Its job is to:
// 1. Read configuration (config file, env vars, flags)
// 2. Create dependencies (logger, database connections, etc.)
// 3. Start the application
//
// All actual logic lives in imported packages (internal/server, internal/handler, etc.).
//
// COMMANDS:
//
//	smartnotes [serve]   run the HTTP API (default)
//	smartnotes migrate   apply schema migrations and exit
package main

func main() {
	Execute()
}
