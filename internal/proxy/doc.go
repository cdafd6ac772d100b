// Package proxy implements the caching HTTP forward proxy.
//
// A single acceptor hands connections to a fixed pool of workers through a
// bounded queue. Each worker serves one GET transaction per connection:
// parse the request line, answer from the shared cache on a hit, otherwise
// fetch from the origin with a minimal HTTP/1.0 request and relay the
// response line by line while capturing it for the cache.
package proxy
