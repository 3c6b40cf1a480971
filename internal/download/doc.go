// Package download provides the fetch-and-merge orchestration that turns a
// tile range into a single GeoTIFF mosaic.
//
// # Manager
//
// The Manager runs one model.Job end to end:
//
//  1. Compute the mosaic size and geotransform from the tile range
//  2. Create the output GeoTIFF
//  3. Fetch every tile concurrently, bounded by the job's concurrency
//  4. Write each tile into its window as soon as it arrives
//  5. Finalize the mosaic and report elapsed time
//
// # Basic Usage
//
//	manager := download.NewManager(settings, logger, func(event download.ProgressEvent) {
//	    fmt.Println(event.Message)
//	})
//
//	job, err := model.NewJob(template, bound, 16, 100, settings.ToPathConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	result, err := manager.Run(ctx, job)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// # Concurrency
//
// Fetches run on an errgroup limited to Job.Concurrency goroutines. Workers
// never return errors; they send each outcome to a single writer loop, which
// is the only code touching the mosaic.
//
// # Failures
//
// A tile that cannot be fetched or decoded is logged, listed in
// Result.Failed and left zero-filled. The job still succeeds unless
// settings.MaxFailureRatio is set and exceeded, in which case Run returns
// ErrTooManyFailures together with the Result.
//
// # Progress Tracking
//
// Progress is reported via a callback function that receives ProgressEvent:
//
//	type ProgressEvent struct {
//	    Message string
//	    Level   ProgressLevel // Info, Verbose, Warning, Error, Success
//	    Done    int
//	    Total   int
//	}
//
// GetProgress can be polled instead, as the TUI does.
package download
