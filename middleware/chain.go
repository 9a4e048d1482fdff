package middleware

import "github.com/julienschmidt/httprouter"

type Middleware func(httprouter.Handle) httprouter.Handle

// Chain applies ms so that the first one listed runs first.
func Chain(ms ...Middleware) Middleware {
	return func(h httprouter.Handle) httprouter.Handle {
		for i := len(ms) - 1; i >= 0; i-- {
			h = ms[i](h)
		}
		return h
	}
}
