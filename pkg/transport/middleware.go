package transport

// Middleware decorates a Processor. Request ids, panic recovery, logging
// and usage recording are all middleware.
type Middleware func(Processor) Processor

// Chain composes middleware so that the first one listed sees the request
// first: Chain(a, b)(p) is a(b(p)). An empty chain returns p unchanged.
func Chain(middlewares ...Middleware) Middleware {
	return func(p Processor) Processor {
		for i := range middlewares {
			p = middlewares[len(middlewares)-1-i](p)
		}
		return p
	}
}
