// Package schedule holds the persisted schedule record, the parsers for the
// free-text dialog inputs, and the Store that serializes every mutation
// together with the job rebuild it triggers.
package schedule
