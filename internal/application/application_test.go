package application

import (
	"context"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/hrimport/internal/config"
	"github.com/JonMunkholm/hrimport/internal/core"
)

func badgerConfig(t *testing.T, extra map[string]string) *config.Config {
	t.Helper()
	env := map[string]string{
		"STORE_BACKEND":    "badger",
		"BADGER_IN_MEMORY": "true",
	}
	for k, v := range extra {
		env[k] = v
	}
	cfg, err := config.LoadFrom(func(k string) string { return env[k] })
	require.NoError(t, err)
	return cfg
}

func TestNew_BadgerBackend(t *testing.T) {
	key := base64.StdEncoding.EncodeToString([]byte(strings.Repeat("k", 32)))
	app, err := New(context.Background(), badgerConfig(t, map[string]string{"CNIC_SEAL_KEY": key}), nil)
	require.NoError(t, err)
	defer app.Close()

	require.NoError(t, app.Store.Ping(context.Background()))
	require.NoError(t, app.Migrate(context.Background()))

	report, err := app.Service.Ingest(context.Background(), core.IngestRequest{
		FileName: "roster.csv",
		Data:     []byte("Employee Name,CNIC #\nAli Khan,35202-1234567-1\n"),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Created)

	p, err := app.Store.FindPersonByCNIC(context.Background(), "3520212345671")
	require.NoError(t, err)
	assert.Equal(t, "3520212345671", p.CNIC.String)
}

func TestClose_Idempotent(t *testing.T) {
	app, err := New(context.Background(), badgerConfig(t, nil), nil)
	require.NoError(t, err)

	require.NoError(t, app.Close())
	require.NoError(t, app.Close())
	assert.Error(t, app.Store.Ping(context.Background()))
}

func TestRetention(t *testing.T) {
	app, err := New(context.Background(), badgerConfig(t, map[string]string{"AUDIT_RETENTION_DAYS": "30"}), nil)
	require.NoError(t, err)
	defer app.Close()

	r := app.Retention()
	assert.Equal(t, 30, r.RetentionDays)
	assert.Equal(t, 5000, r.BatchSize)
}

func TestNew_UnknownBackend(t *testing.T) {
	cfg := badgerConfig(t, nil)
	cfg.Store.Backend = "sqlite"
	_, err := New(context.Background(), cfg, nil)
	assert.Error(t, err)
}

func TestDatabaseName(t *testing.T) {
	assert.Equal(t, "hr", databaseName("postgres://user:secret@db:5432/hr?sslmode=disable"))
	assert.Equal(t, "", databaseName("://bad"))
}
