package cmd

import (
	"context"
	"fmt"

	"foodcart/config"
	"foodcart/media"
	"foodcart/store"
	"foodcart/store/memstore"
	"foodcart/store/mongostore"
	"foodcart/store/pgstore"
	"foodcart/store/supastore"

	"github.com/sirupsen/logrus"
)

func openBackend(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) (store.Backend, error) {
	switch cfg.Store.Driver {
	case "memory":
		return memstore.New(log), nil
	case "mongo":
		return mongostore.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.Database, log)
	case "postgres":
		return pgstore.Connect(ctx, cfg.Postgres.DSN, log)
	case "supabase":
		return supastore.New(supastore.Config{URL: cfg.Supabase.URL, APIKey: cfg.Supabase.Key}, log)
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
}

func openMedia(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) (media.Store, error) {
	switch cfg.Media.Driver {
	case "local":
		return media.NewLocal(cfg.Media.Dir, cfg.Media.BaseURL, log), nil
	case "s3":
		return media.NewS3(ctx, media.S3Options{
			Bucket:        cfg.S3.Bucket,
			Region:        cfg.S3.Region,
			Endpoint:      cfg.S3.Endpoint,
			PublicBaseURL: cfg.S3.PublicBaseURL,
		})
	}
	return nil, fmt.Errorf("unknown media driver %q", cfg.Media.Driver)
}
