// Package firebase holds the Firebase-backed adapters: the Realtime
// Database key-value store and the Identity Toolkit identity provider.
package firebase

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/option"
)

// NewApp initializes the Firebase app. An empty credentialsFile falls back
// to Application Default Credentials.
func NewApp(ctx context.Context, databaseURL, projectID, credentialsFile string) (*firebase.App, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{
		DatabaseURL: databaseURL,
		ProjectID:   projectID,
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("initializing firebase app: %w", err)
	}
	return app, nil
}
