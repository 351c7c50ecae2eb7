// Package health provides liveness and readiness probes for the mixer.
//
// Liveness only reports that the process is running. Readiness runs every
// registered check concurrently, each bounded by the checker timeout. The
// server registers a "snapshot" check that fails until a configuration has
// been activated, plus one check per adapter that can reach an external
// store.
//
//	checker := health.New(2 * time.Second)
//	checker.RegisterCheck("snapshot", func(ctx context.Context) error {
//	    if store.Load() == nil {
//	        return errors.New("no active snapshot")
//	    }
//	    return nil
//	})
//	router.HandleFunc("/healthz", checker.LivenessHandler())
//	router.HandleFunc("/readyz", checker.ReadinessHandler())
package health
