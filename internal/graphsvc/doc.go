// Package graphsvc implements the Graph Analysis Services (§4.12): a
// validated dispatch surface over the Storage Engine's analytical
// primitives, used by external agent tools rather than the interactive
// search path. Every call is parameter-checked (depth bounds, edge-type
// membership in the closed set) before it reaches the Storage Engine, and
// every response is wrapped in the same {tool, parameters, result} shape
// regardless of which analysis ran.
package graphsvc
