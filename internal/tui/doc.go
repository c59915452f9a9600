// Package tui is the terminal front end of the widget.
//
// The model never calls the Bluetooth backend from its update loop. It
// pumps coordinator.Foreground on a short tick and renders whatever the
// subscribers delivered; key presses become fire-and-forget coordinator
// requests. The one synchronous query, the initial adapter power state,
// runs inside a tea.Cmd.
//
// Keys:
//
//	↑/k ↓/j   move selection
//	enter     connect/disconnect a paired device, pair an unpaired one
//	b         toggle adapter power
//	r         refresh
//	s         open the system Bluetooth manager
//	q, esc    quit
package tui
