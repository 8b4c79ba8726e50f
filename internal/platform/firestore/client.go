// Package firestore builds the Firestore client shared by the API and its commands.
package firestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/sigap-dashboard/sigap-api/internal/platform/config"
)

const pingTimeout = 5 * time.Second

// New opens a Firestore client for cfg.FirebaseProjectID. The returned string names the
// credential source for startup logs.
func New(ctx context.Context, cfg config.Config) (*firestore.Client, string, error) {
	if cfg.FirestoreEmulator != "" {
		// the SDK routes to FIRESTORE_EMULATOR_HOST on its own
		client, err := firestore.NewClient(ctx, cfg.FirebaseProjectID, option.WithoutAuthentication())
		if err != nil {
			return nil, "", fmt.Errorf("init firestore emulator client: %w", err)
		}
		return client, "emulator@" + cfg.FirestoreEmulator, nil
	}

	creds, source, err := cfg.FirebaseCredentialsJSON()
	if err != nil {
		return nil, "", err
	}
	client, err := firestore.NewClient(ctx, cfg.FirebaseProjectID, option.WithCredentialsJSON(creds))
	if err != nil {
		return nil, "", fmt.Errorf("init firestore client: %w", err)
	}
	return client, source, nil
}

// Ping reads at most one document from collection. An empty collection is healthy.
func Ping(ctx context.Context, client *firestore.Client, collection string) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	iter := client.Collection(collection).Limit(1).Documents(ctx)
	defer iter.Stop()
	if _, err := iter.Next(); err != nil && !errors.Is(err, iterator.Done) {
		return fmt.Errorf("ping firestore %s: %w", collection, err)
	}
	return nil
}
