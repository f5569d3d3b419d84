// Package scheduler turns stored schedule records into cron jobs.
//
// Every record owns two weekly jobs in the scheduler timezone:
//   - poll_<id> at HH:MM on the send day
//   - rem_<id> five minutes earlier, on the same weekday
//
// The job table is never patched. Rebuild drops every job and registers the
// current collection again, so it is safe to call any number of times.
package scheduler
