// Package redis connects to Redis with go-redis/v9, retrying until the server
// answers a PING, and exposes a readiness probe for the health endpoint.
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	server.Run(ctx, handler, redis.Healthcheck(client))
package redis
