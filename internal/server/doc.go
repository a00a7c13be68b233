// Package server assembles and runs the bridge.
//
// This package wires every component together:
//   - HTTP routing with Gin framework
//   - Middleware stack (recovery, metrics, CORS, rate limiting)
//   - Robot daemon client, state stream, and process manager
//   - Startup orchestration and the WebSocket event feed
//   - App catalog prefetching
//
// Server Lifecycle:
//  1. Load configuration from file and environment
//  2. Initialize logger and metrics
//  3. Spawn the daemon process when locally managed
//  4. Wire the startup orchestrator and its collaborators
//  5. Mount HTTP routes and middleware
//  6. Start the state stream, the startup run, then the HTTP server
//  7. Graceful shutdown on signal
//
// Example Usage:
//
//	cfg := config.LoadOrDefault(path)
//	srv, err := server.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := srv.Run(); err != nil {
//	    log.Fatal(err)
//	}
package server
