// Package client issues requests against a JSON REST backend and
// materializes the responses with the [github.com/adamwoolhether/simplesdk/resource]
// package.
//
// # Building a Client
//
// Use [Build] to create a [Client] with functional options:
//
//	c, err := client.Build(
//		client.WithBasePath("https://api.example.com"),
//		client.WithToken(os.Getenv("API_TOKEN")),
//		client.WithTimeout(10*time.Second),
//	)
//
// The base path, token and persistent headers can be changed later with
// [Client.SetBasePath], [Client.Auth] and [Client.SetHeaders]. A call reads
// them once, when it is issued.
//
// # Making Requests
//
// Every verb has a blocking and a non-blocking form:
//
//	p, err := c.Get(ctx, "/pss/v1/requests", client.WithQuery(map[string]any{
//		"id:in": []int{1, 2, 3},
//	}))
//	if page, ok := p.Page(); ok {
//		for _, req := range page.Items() {
//			fmt.Println(req.Get("subject").Str())
//		}
//	}
//
//	pending := c.CreateAsync(ctx, "/pss/v1/requests", map[string]any{"subject": "help"})
//	self, err := pending.Wait()
//
// Create and Update report a 422 response carrying an "errors" array as a
// [ValidationError]. Every non-2xx status is otherwise an [*HTTPError].
//
// # Concurrent Requests
//
// [Concurrently] issues several requests and waits for all of them:
//
//	res, err := client.Concurrently(c, func(cc *client.ConcurrentClient) []*client.Pending[resource.Payload] {
//		return []*client.Pending[resource.Payload]{
//			cc.Get(ctx, "/a"),
//			cc.Get(ctx, "/b"),
//		}
//	})
//
// For lower-level pacing see the
// [github.com/adamwoolhether/simplesdk/client/throttle] package.
package client
