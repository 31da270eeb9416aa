/*
Package idempotence implements idempotent handling of mutating HTTP
requests on top of net/http.

A client retrying a POST, PUT, PATCH or DELETE request with the same
idempotency key does not cause the downstream handler to run more than
once within a configured time window. The key is read from the
Idempotency-Key request header by default; the client is responsible for
sending a unique value per logical operation, recommended values are
UUIDs. When the key has already completed successfully within the window,
the middleware short-circuits with 304 Not Modified and an empty body and
the downstream handler is never invoked.

Completion state lives in a caller-supplied Cache. The middleware stores
only a completion marker, it does not capture or replay the original
response body. Cache failures never reach the client: read errors degrade
to "no idempotency protection" (the request proceeds as a miss) and write
errors are logged after the response has already been sent.

Two requests with the same key arriving concurrently, before either has
completed, may both observe a miss and both run the downstream handler.
There is no locking in this package; callers needing mutual exclusion can
mark keys up front with the Redis cache's SetNX or an external lock.
*/
package idempotence
