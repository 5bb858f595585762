// Package engine runs one tool-calling session: it validates the request,
// asks the backend whether tools are needed (the gate round), then
// alternates between backend rounds and capability invocations until the
// backend answers in text. Progress is narrated through an optional
// stream.Emitter; a nil emitter means non-streaming delivery.
//
// The engine holds no per-request state between calls and is safe for
// concurrent use.
package engine
