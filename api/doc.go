// Package api provides the REST clients for the call and meeting
// lifecycle endpoints. They carry the authoritative record of every
// call and meeting; the push topics only mirror what these endpoints
// record.
package api
