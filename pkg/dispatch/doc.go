// Package dispatch runs one batch of scorecard lookups: every day of a fixed
// (identifier, year, month), in parallel, joined at a single barrier.
//
// Example usage:
//
//	lookups, _ := client.New(client.DefaultConfig(token))
//	d := dispatch.NewDispatcher(lookups, dispatch.DefaultConfig())
//	results := d.Dispatch(ctx, "240411345999", 2006, 3)
//	if res, ok := dispatch.FirstAccepted(results); ok {
//		fmt.Println(res.Day, res.Record.AllIndiaRank)
//	}
//
// The dispatcher:
//   - Queues days 1 through 31, with no calendar validation
//   - Starts a worker pool bounded by MaxConcurrency (default 31, one per day)
//   - Waits for every lookup, even after one of them matched
//   - Returns one DayResult per day, ordered by day
//
// A failed lookup is a DayResult with OK == false. It is never retried.
package dispatch
