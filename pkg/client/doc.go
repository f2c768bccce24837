/*
Package client provides a Go client for the herald HTTP API.

The client is what the herald CLI uses to drive a running server. Every
method maps onto one API route; non-2xx responses come back as *APIError
carrying the status code and the server's error message.

# Usage

	c, err := client.NewClient("127.0.0.1:8080")
	if err != nil {
		return err
	}
	defer c.Close()

	id, err := c.CreateBot()
	if err != nil {
		return err
	}

	info, err := c.GetBot(id)
	if client.IsNotFound(err) {
		// deleted in the meantime
	}

Event streams run until the context ends:

	err = c.WatchEvents(ctx, id, func(ev *events.Event) {
		fmt.Println(ev.Type, ev.Message)
	})

Requests other than WatchEvents time out after DefaultTimeout.
*/
package client
