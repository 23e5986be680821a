// Package mongo connects to MongoDB with the v2 driver, retrying until the
// deployment answers a ping, and exposes a readiness probe.
//
//	db, err := mongo.NewWithDatabase(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	backend := quotastore.NewMongoBackend(db.Collection(quotastore.DefaultMongoCollection))
package mongo
