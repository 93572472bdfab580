package db

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"flashdeck-backend-go/internal/config"
)

// FirebaseClients bundles the clients created from one Firebase app.
// Either field may be nil when the configuration does not need it.
type FirebaseClients struct {
	Firestore *firestore.Client
	Auth      *auth.Client
}

// Close releases the Firestore connection.
func (c *FirebaseClients) Close() error {
	if c == nil || c.Firestore == nil {
		return nil
	}
	return c.Firestore.Close()
}

// InitFirebase initializes the Firebase Admin SDK and creates the clients the
// configuration asks for: Firestore for the firestore backend and Auth for
// firebase token verification.
func InitFirebase(ctx context.Context, appConfig *config.Config, logger *zap.Logger) (*FirebaseClients, error) {
	if appConfig == nil {
		return nil, fmt.Errorf("InitFirebase: appConfig cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var credsOption option.ClientOption
	switch {
	case appConfig.GoogleApplicationCredentials != "":
		logger.Info("Initializing Firebase with credentials file",
			zap.String("path", appConfig.GoogleApplicationCredentials))
		if _, err := os.Stat(appConfig.GoogleApplicationCredentials); os.IsNotExist(err) {
			// ADC may still be available in the environment.
			logger.Warn("Credentials file does not exist",
				zap.String("path", appConfig.GoogleApplicationCredentials))
		}
		credsOption = option.WithCredentialsFile(appConfig.GoogleApplicationCredentials)
	case appConfig.FirebaseServiceAccountJSONBase64 != "":
		logger.Info("Initializing Firebase with Base64 encoded service account JSON")
		decodedJSON, err := base64.StdEncoding.DecodeString(appConfig.FirebaseServiceAccountJSONBase64)
		if err != nil {
			return nil, fmt.Errorf("failed to decode FirebaseServiceAccountJSONBase64: %w", err)
		}
		credsOption = option.WithCredentialsJSON(decodedJSON)
	default:
		logger.Info("Initializing Firebase using Application Default Credentials")
	}

	var firebaseAppConfig *firebase.Config
	if appConfig.FirebaseProjectID != "" {
		firebaseAppConfig = &firebase.Config{ProjectID: appConfig.FirebaseProjectID}
	}

	var opts []option.ClientOption
	if credsOption != nil {
		opts = append(opts, credsOption)
	}
	app, err := firebase.NewApp(ctx, firebaseAppConfig, opts...)
	if err != nil {
		return nil, fmt.Errorf("firebase.NewApp: %w", err)
	}

	clients := &FirebaseClients{}
	if appConfig.StoreBackend == config.StoreBackendFirestore {
		clients.Firestore, err = app.Firestore(ctx)
		if err != nil {
			return nil, fmt.Errorf("app.Firestore: %w", err)
		}
		logger.Info("Firestore client initialized")
	}

	if appConfig.AuthMode == config.AuthModeFirebase {
		clients.Auth, err = app.Auth(ctx)
		if err != nil {
			_ = clients.Close()
			return nil, fmt.Errorf("app.Auth: %w", err)
		}
		logger.Info("Firebase Auth client initialized")
	}

	return clients, nil
}

// OpenStore initializes Firebase as needed and returns the configured
// DocumentStore. The returned clients may be nil for memory+header setups.
// Closing the store also closes the Firestore client.
func OpenStore(ctx context.Context, appConfig *config.Config, logger *zap.Logger) (DocumentStore, *FirebaseClients, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var clients *FirebaseClients
	if appConfig.NeedsFirebase() {
		var err error
		clients, err = InitFirebase(ctx, appConfig, logger)
		if err != nil {
			return nil, nil, err
		}
	}

	switch appConfig.StoreBackend {
	case config.StoreBackendFirestore:
		return NewFirestoreStore(clients.Firestore, logger.Named("firestore")), clients, nil
	case config.StoreBackendMemory:
		logger.Warn("Using the in-memory store; data is lost on exit")
		return NewMemoryStore(logger.Named("memory")), clients, nil
	default:
		_ = clients.Close()
		return nil, nil, fmt.Errorf("unknown store backend %q", appConfig.StoreBackend)
	}
}
