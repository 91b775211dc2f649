// Package ui renders terminal output for the essp CLI.
//
// Two kinds of component live here. One-shot renderers (header, step list,
// success and failure boxes) print the outcome of a single session command
// and exit. Dashboard is a Bubble Tea program for "essp watch --tui" that
// shows background poll results as they arrive.
//
// # Usage Pattern
//
//	p := ui.NewPrinter(os.Stdout)
//	p.PrintHeader("Key exchange", "essp handshake", params)
//	...
//	p.PrintSuccess("Encrypted session ready", details)
//
//	results, unsubscribe := session.Subscribe(32)
//	defer unsubscribe()
//	err := ui.RunDashboard(ctx, ui.DashboardConfig{Device: "hopper"}, results)
package ui
