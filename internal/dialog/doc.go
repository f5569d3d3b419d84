// Package dialog runs the step-by-step schedule setup conversation.
//
// A Session holds the answers collected so far and a looplab/fsm machine for
// the current step. Session.Apply is pure: it validates a Transition, moves the
// machine and reports what to show next. Manager owns the I/O: it keeps the
// session table, renders prompts by editing one message in place and commits
// the finished record to the store.
//
// Buttons never carry state in their callback data. Each button maps to a
// short token whose JSON payload is a Transition kept server-side.
package dialog
