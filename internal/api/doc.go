// Package api serves the registry over HTTP and streams state changes over
// WebSocket.
//
//	srv, err := api.New(api.Deps{Config: cfg.API, Logger: log, Home: home, Factory: factory})
//	if err := srv.Start(ctx); err != nil {
//	    return err
//	}
//	defer srv.Close()
//
// All routes live under /api/v1. Errors are JSON objects of the form
// {"status": 404, "code": "not_found", "message": "..."}.
package api
