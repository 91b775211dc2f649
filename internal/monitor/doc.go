// Package monitor publishes background poll results to remote observers.
//
// A Hub accepts WebSocket clients and fans every device.PollResult out to
// them as a JSON Message. Announce advertises a running monitor over mDNS as
// "_essp._tcp" so that Browse on another host can find it.
//
// # Usage Example
//
//	hub := monitor.NewHub()
//	results, unsubscribe := session.Subscribe(16)
//	defer unsubscribe()
//	go hub.Run(ctx, results)
//
//	srv := monitor.NewServer(":8765", hub)
//	go srv.Serve(ctx)
package monitor
