package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort int

	Couch  CouchConfig
	Legacy LegacyDBConfig

	// EventsBackend selects where per-row migration events go:
	// "none", "rabbitmq" or "pubsub".
	EventsBackend string
	RabbitMQ      RabbitMQConfig
	PubSub        PubSubConfig

	// ArchiveBackend selects where finished migration reports are
	// uploaded: "none", "minio" or "gcs".
	ArchiveBackend string
	Minio          MinioConfig
	GCS            GCSConfig
}

// CouchConfig locates the CouchDB server and the directory database.
type CouchConfig struct {
	URL      string
	User     string
	Password string
	DBName   string
}

// LegacyDBConfig locates the relational database the migration reads
// from. The migration never writes to it.
type LegacyDBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	UseSSL   bool
}

type RabbitMQConfig struct {
	URL             string
	QueueDurable    bool
	QueueAutoDelete bool
}

type PubSubConfig struct {
	ProjectID       string
	CredentialsFile string
}

type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type GCSConfig struct {
	Bucket          string
	ProjectID       string
	CredentialsFile string
}

func LoadConfig() Config {
	if os.Getenv("ENV") == "dev" {
		godotenv.Load()
	}

	return Config{
		ServerPort: getEnvInt("SERVER_PORT", 8080),
		Couch: CouchConfig{
			URL:      getEnv("COUCHDB_URL", "http://localhost:5984/"),
			User:     getEnv("COUCHDB_USER", ""),
			Password: getEnv("COUCHDB_PASSWORD", ""),
			DBName:   getEnv("COUCHDB_DATABASE", "userdir"),
		},
		Legacy: LegacyDBConfig{
			Host:     getEnv("LEGACY_DB_HOST", "localhost"),
			Port:     getEnvInt("LEGACY_DB_PORT", 5432),
			User:     getEnv("LEGACY_DB_USER", "postgres"),
			Password: getEnv("LEGACY_DB_PASSWORD", "password"),
			DBName:   getEnv("LEGACY_DB_NAME", "legacy"),
			UseSSL:   getEnvBool("LEGACY_DB_USE_SSL", false),
		},
		EventsBackend: getEnv("EVENTS_BACKEND", "none"),
		RabbitMQ: RabbitMQConfig{
			URL:             getEnv("RABBITMQ_URL", ""),
			QueueDurable:    getEnvBool("RABBITMQ_QUEUE_DURABLE", true),
			QueueAutoDelete: getEnvBool("RABBITMQ_QUEUE_AUTO_DELETE", false),
		},
		PubSub: PubSubConfig{
			ProjectID:       getEnv("PUBSUB_PROJECT_ID", ""),
			CredentialsFile: getEnv("PUBSUB_CREDENTIALS_FILE", ""),
		},
		ArchiveBackend: getEnv("ARCHIVE_BACKEND", "none"),
		Minio: MinioConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", ""),
			AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
			SecretKey: getEnv("MINIO_SECRET_KEY", ""),
			Bucket:    getEnv("MINIO_BUCKET", "migration-reports"),
			UseSSL:    getEnvBool("MINIO_USE_SSL", false),
		},
		GCS: GCSConfig{
			Bucket:          getEnv("GCS_BUCKET", ""),
			ProjectID:       getEnv("GCS_PROJECT_ID", ""),
			CredentialsFile: getEnv("GCS_CREDENTIALS_FILE", ""),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if valueStr, exists := os.LookupEnv(key); exists {
		var value int
		fmt.Sscanf(valueStr, "%d", &value)
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if valueStr, exists := os.LookupEnv(key); exists {
		return valueStr == "1" || valueStr == "true" || valueStr == "yes"
	}
	return defaultValue
}
