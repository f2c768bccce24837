/*
Package session defines the boundary between a bot's lifecycle controller and
the engine that speaks to the presence-broadcasting service.

The engine itself is pluggable through Factory. A Session owns a Scheduler
on which the controller registers its recurring refresh tasks; shutting the
session down stops the scheduler, which is how a stopped bot guarantees that
none of its periodic tasks run again.

Restart requests flow the other way: when the engine detects a failure it
cannot recover from, it sends on the channel returned by RestartRequests.
The controller subscribes when a session goes online and stops listening
when it stops the session.

# Errors

  - ErrSessionCreation: Init failed; the controller reverts to offline
  - ErrSessionUpdate: Update failed; retried at the next interval
  - ErrShutdown: a call arrived after Shutdown

pkg/session/local provides a simulated engine used by the herald binary.
*/
package session
