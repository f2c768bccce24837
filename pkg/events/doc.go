/*
Package events provides an in-process publish/subscribe broker for bot and
server lifecycle events.

Bots publish when they start, come online, fail to start, go offline, or
when their session engine asks for a restart. The manager publishes
create/delete and server changes. The HTTP API streams events to clients on
/api/events, optionally filtered to one bot.

Publishing never blocks the publisher. Events are dropped when the broker
queue or a subscriber buffer is full and counted in
herald_events_dropped_total.

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe(events.ForBot(id))
	defer broker.Unsubscribe(sub)

	broker.Publish(events.NewBotEvent(events.EventBotOnline, id, gamertag))

	for ev := range sub.C {
		fmt.Println(ev.Type, ev.Message)
	}
*/
package events
