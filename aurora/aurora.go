// Package aurora reads the Carbonix fleet registry in Aurora MySQL:
// which logs have been ingested and which aircraft a Cube autopilot was
// installed in when a log was recorded. Credentials come from Secrets
// Manager; everything else is plain database/sql.
package aurora

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"
)

// SecretsAPI wraps the Secrets Manager operation used to fetch the
// database password.
type SecretsAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

var _ SecretsAPI = (*secretsmanager.Client)(nil)

// Config is the input to Open.
type Config struct {
	Host     string
	Port     int
	User     string
	Database string

	// Password is used as-is when set; otherwise it is fetched from the
	// Secrets Manager secret named by SecretName ("password" field of a
	// JSON secret).
	Password   string
	SecretName string

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Handler holds one database handle. database/sql pools connections
// underneath; Close releases them.
type Handler struct {
	db  *sql.DB
	log *slog.Logger
}

// Open resolves credentials, connects and verifies the connection with a
// ping.
func Open(ctx context.Context, awsCfg aws.Config, cfg Config) (*Handler, error) {
	return open(ctx, secretsmanager.NewFromConfig(awsCfg), cfg)
}

// OpenWithSecrets is Open with an explicit Secrets Manager implementation.
func OpenWithSecrets(ctx context.Context, secrets SecretsAPI, cfg Config) (*Handler, error) {
	return open(ctx, secrets, cfg)
}

func open(ctx context.Context, secrets SecretsAPI, cfg Config) (*Handler, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	if cfg.Password == "" && cfg.SecretName != "" {
		password, err := fetchPassword(ctx, secrets, cfg.SecretName)
		if err != nil {
			return nil, err
		}
		cfg.Password = password
		cfg.Logger.Debug("database password retrieved from secrets manager", "secret", cfg.SecretName)
	}

	if cfg.Port == 0 {
		cfg.Port = 3306
	}

	dsnCfg := mysql.NewConfig()
	dsnCfg.User = cfg.User
	dsnCfg.Passwd = cfg.Password
	dsnCfg.Net = "tcp"
	dsnCfg.Addr = fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	dsnCfg.DBName = cfg.Database
	dsnCfg.ParseTime = true

	db, err := sql.Open("mysql", dsnCfg.FormatDSN())
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "connect to %s", dsnCfg.Addr)
	}

	cfg.Logger.Debug("connected to database", "host", cfg.Host, "database", cfg.Database)
	return &Handler{db: db, log: cfg.Logger}, nil
}

// Close releases the database handle.
func (h *Handler) Close() error {
	return h.db.Close()
}

func fetchPassword(ctx context.Context, secrets SecretsAPI, secretName string) (string, error) {
	resp, err := secrets.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: &secretName,
	})
	if err != nil {
		return "", errors.Wrapf(err, "retrieve secret %s", secretName)
	}
	if resp.SecretString == nil {
		return "", errors.Errorf("secret %s has no string value", secretName)
	}

	var secret struct {
		Password string `json:"password"`
	}
	if err := json.Unmarshal([]byte(*resp.SecretString), &secret); err != nil {
		return "", errors.Wrapf(err, "decode secret %s", secretName)
	}
	if secret.Password == "" {
		return "", errors.Errorf("secret %s has no password field", secretName)
	}

	return secret.Password, nil
}
