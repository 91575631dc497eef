package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tyemirov/evently/internal/authkit"
	"github.com/tyemirov/evently/internal/authkitpg"
	"github.com/tyemirov/evently/internal/storage"
	"go.uber.org/zap"
)

func newCreateUserCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "create-user",
		Short: "Provision a user that can log in with email and password",
		RunE:  runCreateUser,
	}
	command.Flags().String("email", "", "Login email")
	command.Flags().String("password", "", "Plaintext password; stored as a bcrypt hash")
	return command
}

func runCreateUser(command *cobra.Command, arguments []string) error {
	email, _ := command.Flags().GetString("email")
	password, _ := command.Flags().GetString("password")
	if strings.TrimSpace(email) == "" || password == "" {
		return fmt.Errorf("create_user: --email and --password are required")
	}

	ctx := command.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	databaseURL := viper.GetString("database_url")
	backend := viper.GetString("credential_store")
	if backend == credentialStoreMemory {
		return configError(configCodeUnknownCredentialStore, "create-user needs a persistent credential store")
	}

	database, openErr := storage.Open(ctx, databaseURL)
	if openErr != nil {
		return openErr
	}
	defer func() { _ = database.Close() }()

	store, closeStore, storeErr := openCredentialStore(ctx, zap.NewNop(), database, backend, databaseURL)
	if storeErr != nil {
		return storeErr
	}
	defer closeStore()

	passwordHash, hashErr := authkit.HashPassword(password)
	if hashErr != nil {
		return hashErr
	}
	user, createErr := store.CreateUser(ctx, email, passwordHash)
	if createErr != nil {
		return fmt.Errorf("create_user: %w", createErr)
	}
	fmt.Fprintf(command.OutOrStdout(), "created user %d <%s>\n", user.ID, user.Email)
	return nil
}

// openCredentialStore selects the credential store backend. The returned
// close function is always non-nil.
func openCredentialStore(ctx context.Context, logger *zap.Logger, database *storage.Database, backend string, databaseURL string) (authkit.CredentialStore, func(), error) {
	noop := func() {}
	switch backend {
	case "", credentialStoreGorm:
		store, err := authkit.NewDatabaseCredentialStore(ctx, database.DB)
		if err != nil {
			return nil, noop, err
		}
		logger.Info("using gorm credential store", zap.String("driver", database.Driver()))
		return store, noop, nil
	case credentialStorePgx:
		if database.Driver() != storage.DriverPostgres {
			return nil, noop, configError(configCodeUnknownCredentialStore, "credential_store pgx requires a postgres:// database_url")
		}
		pool, err := authkitpg.BuildPool(ctx, databaseURL)
		if err != nil {
			return nil, noop, err
		}
		if migrateErr := authkitpg.RunMigrations(ctx, pool); migrateErr != nil {
			pool.Close()
			return nil, noop, migrateErr
		}
		logger.Info("using pgx credential store")
		return authkitpg.NewPostgresCredentialStore(pool), pool.Close, nil
	case credentialStoreMemory:
		logger.Warn("using in-memory credential store; users are lost on restart",
			zap.String("code", "config.memory_credential_store"))
		return authkit.NewMemoryCredentialStore(), noop, nil
	default:
		return nil, noop, configError(configCodeUnknownCredentialStore, fmt.Sprintf("credential_store %q is not one of gorm, pgx, memory", backend))
	}
}
