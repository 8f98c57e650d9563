// Package bootstrap assembles the session stack from one configuration
// document and manages its lifecycle.
//
// NewApp wires the key-value store, client state, session store, auth
// client, location resolver, optional artifact cache, and session
// scheduler together. The store and the scheduler are registered as
// components so they start in order and stop in reverse, and their
// health is aggregated by ReadyCheck.
//
// # Quick Start
//
//	cfg, err := bootstrap.LoadConfig("myapp")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	app, err := bootstrap.NewApp(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := app.Run(context.Background()); err != nil {
//	    log.Fatal(err)
//	}
//
// Run blocks until SIGINT/SIGTERM. RunTask runs a finite function with
// the same startup and shutdown sequence.
package bootstrap
