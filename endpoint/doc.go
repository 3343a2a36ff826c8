// Package endpoint parses and validates address:port strings into endpoints
// usable by the client and server facades. It is a stateless leaf utility.
package endpoint
