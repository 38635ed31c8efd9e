// Package requestid attaches a correlation id to every HTTP request.
//
// Middleware reuses a client supplied X-Request-ID when it is well formed
// (letters, digits, dash and underscore, at most 128 bytes) and generates a
// UUID otherwise. The id is stored in the request context, mirrored into chi's
// request id key, and echoed back in the response header.
//
// LoggerExtractor plugs the id into the logger package so every log line
// written with the request context carries "request_id".
package requestid
