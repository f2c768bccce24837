/*
Package bot implements the per-bot lifecycle controller.

A Container owns one bot: its status (offline, starting, online), the
session handle obtained from the session engine, a bounded diagnostic log,
and the periodic refresh tasks that run while the bot is online.

# Lifecycle

	offline --Start--> starting --Init ok--> online
	                      |                    |
	                      +--failure--> offline <--Stop--+

Start, Stop and Restart are serialized per container. Start is a no-op
unless the bot is offline and Stop is a no-op when it is offline. A failed
start records one ERROR line in the diagnostic log and returns the bot to
offline; it never propagates to the caller.

While online two tasks run on the session's scheduler:

  - session refresh: re-reads the bot's server from the registry and
    pushes the session info to the engine
  - friend stats: records the engine's following count for Info

Each start increments a generation counter. Refreshes that complete after
the generation they were started under has ended discard their results.

# Restart Requests

The engine reports unrecoverable failures on Session.RestartRequests. The
container answers the first request of a generation with Stop followed by
Start; requests from a stopped session are ignored.

# Usage

	c := bot.NewContainer(record, bot.Dependencies{
		Registry: mgr,
		Factory:  local.NewFactory(local.Options{}),
		Storage:  store.SessionStorage(record.ID),
		Events:   broker,
	}, bot.DefaultConfig())

	c.Start()
	info := c.Info()
	fmt.Println(c.Logs())
	c.Stop()
*/
package bot
